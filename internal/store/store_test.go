package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/assemble"
	"github.com/inodb/vibe-indel/internal/classify"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func classifiedRecord(id, runID string, pos int64) *assemble.Record {
	return &assemble.Record{
		ID:      id,
		RunID:   runID,
		Region:  align.Region{Chrom: "1", Start: 1, End: 10000},
		Outcome: assemble.OutcomeClassified,
		Chrom:   "1", Pos: pos, Ref: "A", Alt: "AT",
		Label: classify.LabelSomatic,
		Probs: classify.Probs{Somatic: 0.8, Germline: 0.15, Artifact: 0.05},
		Trace: "argmax: somatic at 0.8000",
		Features: map[string]float64{
			"vaf":     0.25,
			"support": 5,
		},
		Complexity: 1, Support: 5, Depth: 20,
		Source: "caller-x",
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestWriteAndLookupRun(t *testing.T) {
	s := openInMemory(t)

	records := []*assemble.Record{
		classifiedRecord("rec-2", "run-1", 500),
		classifiedRecord("rec-1", "run-1", 100),
		classifiedRecord("rec-3", "run-2", 100),
	}
	require.NoError(t, s.WriteRecords(records))

	got, err := s.LookupRun("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by position, not insertion order.
	assert.Equal(t, "rec-1", got[0].ID)
	assert.Equal(t, int64(100), got[0].Pos)
	assert.Equal(t, "rec-2", got[1].ID)

	r := got[0]
	assert.Equal(t, assemble.OutcomeClassified, r.Outcome)
	assert.Equal(t, classify.LabelSomatic, r.Label)
	assert.InDelta(t, 0.8, r.Probs.Somatic, 1e-9)
	assert.InDelta(t, 0.25, r.Features["vaf"], 1e-9)
	assert.Equal(t, 5, r.Support)
	assert.Equal(t, "caller-x", r.Source)
	assert.False(t, r.Rescued)
	assert.Nil(t, r.Rescue)

	got, err = s.LookupRun("run-9")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRecords_Deduplicates(t *testing.T) {
	s := openInMemory(t)

	r := classifiedRecord("rec-1", "run-1", 100)
	require.NoError(t, s.WriteRecords([]*assemble.Record{r, r}))

	got, err := s.LookupRun("run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRescueFieldsRoundTrip(t *testing.T) {
	s := openInMemory(t)

	r := classifiedRecord("rec-1", "run-1", 103)
	r.Rescued = true
	r.Rescue = &assemble.RescueAnnotation{
		RequestedChrom: "1", RequestedPos: 100, RequestedRef: "A", RequestedAlt: "ATT",
	}
	require.NoError(t, s.WriteRecords([]*assemble.Record{r}))

	got, err := s.LookupRun("run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].Rescued)
	require.NotNil(t, got[0].Rescue)
	assert.Equal(t, int64(100), got[0].Rescue.RequestedPos)
	assert.Equal(t, "ATT", got[0].Rescue.RequestedAlt)
}

func TestNotFoundRecord(t *testing.T) {
	s := openInMemory(t)

	r := &assemble.Record{
		ID:      "rec-1",
		RunID:   "run-1",
		Region:  align.Region{Chrom: "2", Start: 1, End: 1000},
		Outcome: assemble.OutcomeNotFound,
		Chrom:   "2", Pos: 555, Ref: "GA", Alt: "G",
		Source: "caller-y",
	}
	require.NoError(t, s.WriteRecords([]*assemble.Record{r}))

	got, err := s.LookupRun("run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, assemble.OutcomeNotFound, got[0].Outcome)
	assert.Empty(t, got[0].Label)
	assert.Nil(t, got[0].Features)
}

func TestSearchByLabel(t *testing.T) {
	s := openInMemory(t)

	somatic := classifiedRecord("rec-1", "run-1", 100)
	germline := classifiedRecord("rec-2", "run-1", 200)
	germline.Label = classify.LabelGermline

	require.NoError(t, s.WriteRecords([]*assemble.Record{somatic, germline}))

	got, err := s.SearchByLabel("run-1", classify.LabelGermline)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-2", got[0].ID)

	got, err = s.SearchByLabel("run-1", classify.LabelArtifact)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCountByOutcome(t *testing.T) {
	s := openInMemory(t)

	nf := classifiedRecord("rec-3", "run-1", 300)
	nf.Outcome = assemble.OutcomeNotFound

	require.NoError(t, s.WriteRecords([]*assemble.Record{
		classifiedRecord("rec-1", "run-1", 100),
		classifiedRecord("rec-2", "run-1", 200),
		nf,
	}))

	counts, err := s.CountByOutcome("run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[assemble.OutcomeClassified])
	assert.Equal(t, 1, counts[assemble.OutcomeNotFound])
}

func TestWriteRecords_Empty(t *testing.T) {
	s := openInMemory(t)
	assert.NoError(t, s.WriteRecords(nil))
}
