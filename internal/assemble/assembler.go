// Package assemble packages reconciled indels, feature vectors, and
// classification outcomes into final result records. No decision logic
// lives here; assembly is purely structural and rejects partial inputs.
package assemble

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/classify"
	"github.com/inodb/vibe-indel/internal/consolidate"
	"github.com/inodb/vibe-indel/internal/features"
)

// ErrIncompleteRecord indicates a missing upstream field during
// assembly. It is a programming-contract failure: the record is skipped
// and logged, never silently emitted partial.
var ErrIncompleteRecord = errors.New("incomplete result record")

// Outcome distinguishes classified indels from candidates with no
// alignment evidence.
type Outcome string

const (
	OutcomeClassified Outcome = "classified"
	// OutcomeNotFound: the candidate had no compatible alignment
	// evidence and was excluded from classification (NtF in VCF output).
	OutcomeNotFound Outcome = "not_found"
)

// RescueAnnotation is the audit trail for an allele substitution.
type RescueAnnotation struct {
	RequestedChrom string
	RequestedPos   int64
	RequestedRef   string
	RequestedAlt   string
}

// Record is one indel's final output, sufficient for a VCF-style
// annotation without any file-format knowledge here.
type Record struct {
	ID      string
	RunID   string
	Region  align.Region
	Outcome Outcome

	Chrom string
	Pos   int64
	Ref   string
	Alt   string

	Label    classify.Label
	Probs    classify.Probs
	Trace    string
	Features map[string]float64

	Complexity int
	Support    int
	Depth      int

	Rescued bool
	Rescue  *RescueAnnotation

	// Source identifies the external caller for candidate-driven runs.
	Source string
}

// Assembler builds Records for one run. The run ID ties records from
// all regions of one invocation together in downstream stores.
type Assembler struct {
	runID string
}

// NewAssembler creates an Assembler with a fresh run ID.
func NewAssembler() *Assembler {
	return &Assembler{runID: uuid.NewString()}
}

// RunID returns the run identifier stamped on every record.
func (a *Assembler) RunID() string {
	return a.runID
}

// Assemble combines one reconciled indel with its feature vector and
// classification decision. Every field is validated: a nil composite,
// an incomplete vector, or a missing decision fails with
// ErrIncompleteRecord rather than emitting a partial record.
func (a *Assembler) Assemble(region align.Region, rec *consolidate.Reconciled, vec *features.Vector, d *classify.Decision) (*Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil reconciled indel", ErrIncompleteRecord)
	}
	if rec.Status == consolidate.MatchNone {
		return nil, fmt.Errorf("%w: unmatched candidate has no classification; use AssembleNotFound", ErrIncompleteRecord)
	}
	if rec.Composite == nil {
		return nil, fmt.Errorf("%w: reconciled indel without composite", ErrIncompleteRecord)
	}
	if vec == nil || !vec.Complete() {
		return nil, fmt.Errorf("%w: feature vector missing required keys", ErrIncompleteRecord)
	}
	if d == nil || d.Label == "" {
		return nil, fmt.Errorf("%w: missing classification decision", ErrIncompleteRecord)
	}
	if rec.Status == consolidate.MatchRescued && rec.Rescue == nil {
		return nil, fmt.Errorf("%w: rescued indel without rescue annotation", ErrIncompleteRecord)
	}

	c := rec.Composite
	out := &Record{
		ID:         uuid.NewString(),
		RunID:      a.runID,
		Region:     region,
		Outcome:    OutcomeClassified,
		Chrom:      c.Chrom,
		Pos:        c.Pos,
		Ref:        c.Ref,
		Alt:        c.Alt,
		Label:      d.Label,
		Probs:      d.Probs,
		Trace:      d.Trace,
		Features:   vec.Map(),
		Complexity: c.Complexity,
		Support:    c.Support,
		Depth:      c.Depth,
	}
	if rec.Candidate != nil {
		out.Source = rec.Candidate.Source
	}
	if rec.Status == consolidate.MatchRescued {
		out.Rescued = true
		out.Rescue = &RescueAnnotation{
			RequestedChrom: rec.Rescue.RequestedChrom,
			RequestedPos:   rec.Rescue.RequestedPos,
			RequestedRef:   rec.Rescue.RequestedRef,
			RequestedAlt:   rec.Rescue.RequestedAlt,
		}
	}
	return out, nil
}

// AssembleNotFound builds the report record for a candidate with no
// compatible alignment evidence.
func (a *Assembler) AssembleNotFound(region align.Region, cand *align.Candidate) (*Record, error) {
	if cand == nil {
		return nil, fmt.Errorf("%w: nil candidate", ErrIncompleteRecord)
	}
	return &Record{
		ID:      uuid.NewString(),
		RunID:   a.runID,
		Region:  region,
		Outcome: OutcomeNotFound,
		Chrom:   cand.Chrom,
		Pos:     cand.Pos,
		Ref:     cand.Ref,
		Alt:     cand.Alt,
		Source:  cand.Source,
	}, nil
}
