// Package pipeline wires the scan, consolidate, feature, classify, and
// assemble stages into a per-region engine with a region worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/assemble"
	"github.com/inodb/vibe-indel/internal/classify"
	"github.com/inodb/vibe-indel/internal/consolidate"
	"github.com/inodb/vibe-indel/internal/features"
	"github.com/inodb/vibe-indel/internal/refseq"
	"github.com/inodb/vibe-indel/internal/scan"
)

// Engine runs the full indel pipeline for one region at a time. Regions
// are independent: the engine holds no cross-region state beyond the
// run ID, so ProcessRegion is safe to call from multiple goroutines.
type Engine struct {
	candidates   align.CandidateSource // nil for alignment-only calling
	scanner      *scan.Scanner
	consolidator *consolidate.Consolidator
	extractor    *features.Extractor
	classifier   *classify.Classifier
	assembler    *assemble.Assembler
	cfg          Config
	logger       *zap.Logger
}

// NewEngine validates the configuration and wires the stages. candidates
// may be nil, in which case regions are called purely from alignment
// evidence. A scorer whose feature schema does not match the extractor's
// is a configuration error.
func NewEngine(reads align.ReadSource, candidates align.CandidateSource, ref refseq.Provider, scorer classify.Scorer, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reads == nil {
		return nil, fmt.Errorf("%w: nil read source", ErrConfiguration)
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: nil reference provider", ErrConfiguration)
	}

	classifier, err := classify.New(scorer, cfg.Margin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	extractor := features.New(ref)
	extractor.SetFlank(cfg.Flank)

	return &Engine{
		candidates: candidates,
		scanner: scan.New(reads, ref, scan.Config{
			MinMapQ:     cfg.MinMapQ,
			MinBaseQual: cfg.MinBaseQual,
		}),
		consolidator: consolidate.New(ref, consolidate.Config{MergeGap: cfg.MergeGap}),
		extractor:    extractor,
		classifier:   classifier,
		assembler:    assemble.NewAssembler(),
		cfg:          cfg,
		logger:       zap.NewNop(),
	}, nil
}

// SetLogger sets the logger shared by all stages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
	e.scanner.SetLogger(l)
}

// SetAnnotations configures the cohort annotation provider for feature
// extraction.
func (e *Engine) SetAnnotations(p features.AnnotationProvider) {
	e.extractor.SetAnnotations(p)
}

// RunID returns the identifier stamped on every record of this engine.
func (e *Engine) RunID() string {
	return e.assembler.RunID()
}

// ProcessRegion runs scan, consolidate, reconcile, extract, classify,
// and assemble for one region. A region with zero coverage yields its
// candidates as not-found records (or nothing when calling directly);
// a source failure fails the whole region. Per-record failures inside a
// healthy region are logged and skipped, never fatal.
func (e *Engine) ProcessRegion(ctx context.Context, region align.Region) ([]*assemble.Record, error) {
	ev, err := e.scanner.Scan(ctx, region)
	if err != nil {
		return nil, err
	}

	composites, err := e.consolidator.Consolidate(ev)
	if err != nil {
		return nil, fmt.Errorf("consolidate region %s: %w", region, err)
	}

	rescueCfg := consolidate.RescueConfig{
		Window:     e.cfg.RescueWindow,
		MinSupport: e.cfg.MinSupport,
	}

	var reconciled []*consolidate.Reconciled
	if e.candidates != nil {
		cands, err := e.candidates.FetchCandidates(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("%w: candidates for region %s: %v", align.ErrEvidenceUnavailable, region, err)
		}
		reconciled = consolidate.Reconcile(consolidate.BuildIndex(composites), cands, rescueCfg)
	} else {
		reconciled = consolidate.DirectCalls(composites, rescueCfg)
	}

	records := make([]*assemble.Record, 0, len(reconciled))
	for _, rec := range reconciled {
		r, err := e.processOne(region, rec)
		if err != nil {
			e.logger.Warn("skipping indel",
				zap.String("region", region.String()),
				zap.String("status", rec.Status.String()),
				zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// processOne turns a single reconciled indel into a final record.
func (e *Engine) processOne(region align.Region, rec *consolidate.Reconciled) (*assemble.Record, error) {
	if rec.Status == consolidate.MatchNone {
		return e.assembler.AssembleNotFound(region, rec.Candidate)
	}

	vec, err := e.extractor.Extract(rec)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	decision, err := e.classifier.Classify(vec)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	r, err := e.assembler.Assemble(region, rec, vec, decision)
	if err != nil {
		if errors.Is(err, assemble.ErrIncompleteRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return r, nil
}
