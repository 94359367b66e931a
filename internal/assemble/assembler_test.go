package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/classify"
	"github.com/inodb/vibe-indel/internal/consolidate"
	"github.com/inodb/vibe-indel/internal/features"
)

func testRegion() align.Region {
	return align.Region{Chrom: "1", Start: 1, End: 1000}
}

func testReconciled() *consolidate.Reconciled {
	return &consolidate.Reconciled{
		Composite: &consolidate.Composite{
			Chrom: "1", Pos: 100, Ref: "A", Alt: "AT",
			Complexity: 1, Support: 5, Depth: 20,
		},
		Candidate: &align.Candidate{Chrom: "1", Pos: 100, Ref: "A", Alt: "AT", Source: "caller-x"},
		Status:    consolidate.MatchExact,
	}
}

func testDecision() *classify.Decision {
	return &classify.Decision{
		Label: classify.LabelSomatic,
		Probs: classify.Probs{Somatic: 0.9, Germline: 0.06, Artifact: 0.04},
		Trace: "argmax: somatic at 0.9000",
	}
}

func TestAssemble_Complete(t *testing.T) {
	a := NewAssembler()

	r, err := a.Assemble(testRegion(), testReconciled(), features.NewVector(), testDecision())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, a.RunID(), r.RunID)
	assert.Equal(t, OutcomeClassified, r.Outcome)
	assert.Equal(t, "1", r.Chrom)
	assert.Equal(t, int64(100), r.Pos)
	assert.Equal(t, classify.LabelSomatic, r.Label)
	assert.Equal(t, 5, r.Support)
	assert.Equal(t, 20, r.Depth)
	assert.Equal(t, "caller-x", r.Source)
	assert.False(t, r.Rescued)
	assert.Len(t, r.Features, len(features.Names()))
}

func TestAssemble_RescueAnnotationCarried(t *testing.T) {
	a := NewAssembler()
	rec := testReconciled()
	rec.Status = consolidate.MatchRescued
	rec.Rescue = &consolidate.RescueNote{
		RequestedChrom: "1", RequestedPos: 97, RequestedRef: "A", RequestedAlt: "ATTT",
	}

	r, err := a.Assemble(testRegion(), rec, features.NewVector(), testDecision())
	require.NoError(t, err)

	assert.True(t, r.Rescued)
	require.NotNil(t, r.Rescue)
	assert.Equal(t, int64(97), r.Rescue.RequestedPos)
	assert.Equal(t, "ATTT", r.Rescue.RequestedAlt)
	// The record's own allele is the substituted composite.
	assert.Equal(t, int64(100), r.Pos)
	assert.Equal(t, "AT", r.Alt)
}

func TestAssemble_IncompleteInputs(t *testing.T) {
	a := NewAssembler()

	tests := []struct {
		name string
		fn   func() (*Record, error)
	}{
		{"nil reconciled", func() (*Record, error) {
			return a.Assemble(testRegion(), nil, features.NewVector(), testDecision())
		}},
		{"nil vector", func() (*Record, error) {
			return a.Assemble(testRegion(), testReconciled(), nil, testDecision())
		}},
		{"incomplete vector", func() (*Record, error) {
			return a.Assemble(testRegion(), testReconciled(), &features.Vector{}, testDecision())
		}},
		{"nil decision", func() (*Record, error) {
			return a.Assemble(testRegion(), testReconciled(), features.NewVector(), nil)
		}},
		{"no composite", func() (*Record, error) {
			rec := testReconciled()
			rec.Composite = nil
			return a.Assemble(testRegion(), rec, features.NewVector(), testDecision())
		}},
		{"rescued without note", func() (*Record, error) {
			rec := testReconciled()
			rec.Status = consolidate.MatchRescued
			return a.Assemble(testRegion(), rec, features.NewVector(), testDecision())
		}},
		{"unmatched via Assemble", func() (*Record, error) {
			return a.Assemble(testRegion(), &consolidate.Reconciled{Status: consolidate.MatchNone}, features.NewVector(), testDecision())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncompleteRecord)
		})
	}
}

func TestAssembleNotFound(t *testing.T) {
	a := NewAssembler()
	cand := &align.Candidate{Chrom: "2", Pos: 555, Ref: "GA", Alt: "G", Source: "caller-y"}

	r, err := a.AssembleNotFound(testRegion(), cand)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotFound, r.Outcome)
	assert.Equal(t, "2", r.Chrom)
	assert.Equal(t, int64(555), r.Pos)
	assert.Equal(t, "caller-y", r.Source)
	assert.Empty(t, r.Label)

	_, err = a.AssembleNotFound(testRegion(), nil)
	assert.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestAssembler_DistinctRunIDs(t *testing.T) {
	assert.NotEqual(t, NewAssembler().RunID(), NewAssembler().RunID())
}
