// Package store persists classified indel records in DuckDB
// (queryable, append-only, one row per record).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for indel results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS indel_results (
		id VARCHAR,
		run_id VARCHAR,
		region VARCHAR,
		outcome VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		label VARCHAR,
		prob_somatic DOUBLE,
		prob_germline DOUBLE,
		prob_artifact DOUBLE,
		trace VARCHAR,
		features VARCHAR,
		complexity BIGINT,
		support BIGINT,
		depth BIGINT,
		rescued BOOLEAN,
		requested_chrom VARCHAR,
		requested_pos BIGINT,
		requested_ref VARCHAR,
		requested_alt VARCHAR,
		source VARCHAR,
		PRIMARY KEY (id)
	)`)
	return err
}
