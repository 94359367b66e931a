package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-indel/internal/assemble"
	"github.com/inodb/vibe-indel/internal/classify"
)

// WriteRecords batch-inserts records using the Appender API. Duplicate
// record IDs are deduplicated before writing.
func (s *Store) WriteRecords(records []*assemble.Record) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(records))
	deduped := make([]*assemble.Record, 0, len(records))
	for _, r := range records {
		if !seen[r.ID] {
			seen[r.ID] = true
			deduped = append(deduped, r)
		}
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "indel_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		var featureJSON []byte
		if r.Features != nil {
			featureJSON, err = json.Marshal(r.Features)
			if err != nil {
				return fmt.Errorf("encode features for %s: %w", r.ID, err)
			}
		}

		var reqChrom, reqRef, reqAlt string
		var reqPos int64
		if r.Rescue != nil {
			reqChrom = r.Rescue.RequestedChrom
			reqPos = r.Rescue.RequestedPos
			reqRef = r.Rescue.RequestedRef
			reqAlt = r.Rescue.RequestedAlt
		}

		if err := appender.AppendRow(
			r.ID, r.RunID, r.Region.String(), string(r.Outcome),
			r.Chrom, r.Pos, r.Ref, r.Alt,
			string(r.Label), r.Probs.Somatic, r.Probs.Germline, r.Probs.Artifact,
			r.Trace, string(featureJSON),
			int64(r.Complexity), int64(r.Support), int64(r.Depth),
			r.Rescued, reqChrom, reqPos, reqRef, reqAlt,
			r.Source,
		); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
	}

	return appender.Flush()
}

// LookupRun returns all records of one run, ordered by chrom, pos, alt.
func (s *Store) LookupRun(runID string) ([]*assemble.Record, error) {
	rows, err := s.db.Query(selectColumns+` FROM indel_results
		WHERE run_id=? ORDER BY chrom, pos, alt`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// SearchByLabel returns a run's records with the given classification.
func (s *Store) SearchByLabel(runID string, label classify.Label) ([]*assemble.Record, error) {
	rows, err := s.db.Query(selectColumns+` FROM indel_results
		WHERE run_id=? AND label=? ORDER BY chrom, pos, alt`, runID, string(label))
	if err != nil {
		return nil, fmt.Errorf("query by label: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountByOutcome returns per-outcome record counts for one run.
func (s *Store) CountByOutcome(runID string) (map[assemble.Outcome]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM indel_results
		WHERE run_id=? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[assemble.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[assemble.Outcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

const selectColumns = `SELECT
	id, run_id, outcome,
	chrom, pos, ref, alt,
	label, prob_somatic, prob_germline, prob_artifact,
	trace, features,
	complexity, support, depth,
	rescued, requested_chrom, requested_pos, requested_ref, requested_alt,
	source`

// scanRecords scans rows into Record slices. The region column is not
// round-tripped; stored records carry positions, not query windows.
func scanRecords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*assemble.Record, error) {
	var records []*assemble.Record
	for rows.Next() {
		var r assemble.Record
		var outcome, label, featureJSON string
		var reqChrom, reqRef, reqAlt string
		var reqPos int64

		if err := rows.Scan(
			&r.ID, &r.RunID, &outcome,
			&r.Chrom, &r.Pos, &r.Ref, &r.Alt,
			&label, &r.Probs.Somatic, &r.Probs.Germline, &r.Probs.Artifact,
			&r.Trace, &featureJSON,
			&r.Complexity, &r.Support, &r.Depth,
			&r.Rescued, &reqChrom, &reqPos, &reqRef, &reqAlt,
			&r.Source,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r.Outcome = assemble.Outcome(outcome)
		r.Label = classify.Label(label)
		if featureJSON != "" {
			if err := json.Unmarshal([]byte(featureJSON), &r.Features); err != nil {
				return nil, fmt.Errorf("decode features for %s: %w", r.ID, err)
			}
		}
		if r.Rescued {
			r.Rescue = &assemble.RescueAnnotation{
				RequestedChrom: reqChrom,
				RequestedPos:   reqPos,
				RequestedRef:   reqRef,
				RequestedAlt:   reqAlt,
			}
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
