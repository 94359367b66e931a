package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/assemble"
	"github.com/inodb/vibe-indel/internal/classify"
	"github.com/inodb/vibe-indel/internal/features"
	"github.com/inodb/vibe-indel/internal/refseq"
)

// testRef: 1-based positions 1..20 of chromosome "1".
const testSeq = "ACGTACGTACGTACGTACGT"

func testRef() refseq.Provider {
	return &refseq.InMemory{Sequences: map[string]string{"1": testSeq}}
}

type fixedScorer struct {
	probs classify.Probs
}

func (fixedScorer) Schema() string { return features.SchemaVersion }

func (f fixedScorer) Score(*features.Vector) (classify.Probs, error) {
	return f.probs, nil
}

func somaticScorer() classify.Scorer {
	return fixedScorer{probs: classify.Probs{Somatic: 0.8, Germline: 0.15, Artifact: 0.05}}
}

func testConfig() Config {
	cfg := Default()
	cfg.MinMapQ = 0
	cfg.MinBaseQual = 0
	cfg.Workers = 2
	return cfg
}

func deletionRead(name string) *align.Read {
	// 4M2D4M at pos 1: deletes reference bases 5-6 ("AC"),
	// consolidating to 4:TAC>T.
	ops, err := align.ParseCigar("4M2D4M")
	if err != nil {
		panic(err)
	}
	seq := "ACGTGTAC"
	quals := make([]byte, len(seq))
	for i := range quals {
		quals[i] = 30
	}
	return &align.Read{Name: name, Chrom: "1", Pos: 1, MapQ: 60, Cigar: ops, Seq: seq, Quals: quals}
}

func testReads() align.ReadSource {
	return &align.SliceReadSource{Reads: []*align.Read{
		deletionRead("r1"),
		deletionRead("r2"),
	}}
}

func wholeRegion() align.Region {
	return align.Region{Chrom: "1", Start: 1, End: 20}
}

func TestNewEngine_Validation(t *testing.T) {
	bad := testConfig()
	bad.MinSupport = 0
	_, err := NewEngine(testReads(), nil, testRef(), somaticScorer(), bad)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewEngine(nil, nil, testRef(), somaticScorer(), testConfig())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewEngine(testReads(), nil, nil, somaticScorer(), testConfig())
	assert.ErrorIs(t, err, ErrConfiguration)
}

type staleScorer struct{ fixedScorer }

func (staleScorer) Schema() string { return "v0" }

func TestNewEngine_SchemaMismatchIsConfigurationError(t *testing.T) {
	_, err := NewEngine(testReads(), nil, testRef(), staleScorer{}, testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestProcessRegion_CandidateDriven(t *testing.T) {
	candidates := &align.SliceCandidateSource{Candidates: []*align.Candidate{
		{Chrom: "1", Pos: 4, Ref: "TAC", Alt: "T", Source: "caller-x"},
		{Chrom: "1", Pos: 15, Ref: "A", Alt: "ATTTT", Source: "caller-x"},
	}}

	e, err := NewEngine(testReads(), candidates, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	records, err := e.ProcessRegion(context.Background(), wholeRegion())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Observed deletion: classified with full evidence.
	r := records[0]
	assert.Equal(t, assemble.OutcomeClassified, r.Outcome)
	assert.Equal(t, int64(4), r.Pos)
	assert.Equal(t, "TAC", r.Ref)
	assert.Equal(t, "T", r.Alt)
	assert.Equal(t, classify.LabelSomatic, r.Label)
	assert.Equal(t, 2, r.Support)
	assert.Equal(t, "caller-x", r.Source)
	assert.False(t, r.Rescued)
	assert.Equal(t, e.RunID(), r.RunID)

	// Insertion with no alignment evidence: reported, not classified.
	nf := records[1]
	assert.Equal(t, assemble.OutcomeNotFound, nf.Outcome)
	assert.Equal(t, int64(15), nf.Pos)
	assert.Empty(t, nf.Label)
	assert.Equal(t, e.RunID(), nf.RunID)
}

func TestProcessRegion_DirectCalling(t *testing.T) {
	e, err := NewEngine(testReads(), nil, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	records, err := e.ProcessRegion(context.Background(), wholeRegion())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, assemble.OutcomeClassified, records[0].Outcome)
	assert.Equal(t, "TAC", records[0].Ref)
	assert.Empty(t, records[0].Source)
}

func TestProcessRegion_MinSupportFiltersDirectCalls(t *testing.T) {
	cfg := testConfig()
	cfg.MinSupport = 3

	e, err := NewEngine(testReads(), nil, testRef(), somaticScorer(), cfg)
	require.NoError(t, err)

	records, err := e.ProcessRegion(context.Background(), wholeRegion())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessRegion_ZeroCoverageWithCandidates(t *testing.T) {
	candidates := &align.SliceCandidateSource{Candidates: []*align.Candidate{
		{Chrom: "1", Pos: 10, Ref: "G", Alt: "GA", Source: "caller-x"},
	}}
	noReads := &align.SliceReadSource{}

	e, err := NewEngine(noReads, candidates, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	records, err := e.ProcessRegion(context.Background(), wholeRegion())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, assemble.OutcomeNotFound, records[0].Outcome)
}

// failingReadSource fails for one chromosome and serves the rest.
type failingReadSource struct {
	inner     align.ReadSource
	failChrom string
}

func (s *failingReadSource) FetchReads(ctx context.Context, region align.Region) ([]*align.Read, error) {
	if region.Chrom == s.failChrom {
		return nil, fmt.Errorf("connection reset")
	}
	return s.inner.FetchReads(ctx, region)
}

func TestRun_OrderAndFailureIsolation(t *testing.T) {
	reads := &failingReadSource{inner: testReads(), failChrom: "2"}
	e, err := NewEngine(reads, nil, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	regions := []align.Region{
		{Chrom: "1", Start: 1, End: 20},
		{Chrom: "2", Start: 1, End: 20},
		{Chrom: "1", Start: 1, End: 20},
	}

	var results []WorkResult
	err = e.Run(context.Background(), regions, func(r WorkResult) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, i, r.Seq)
		assert.Equal(t, regions[i], r.Region)
	}

	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Records, 1)

	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, align.ErrEvidenceUnavailable)
	assert.Empty(t, results[1].Records)

	assert.NoError(t, results[2].Err)
	assert.Len(t, results[2].Records, 1)
}

func TestRun_CollectorErrorStopsRun(t *testing.T) {
	e, err := NewEngine(testReads(), nil, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	regions := []align.Region{wholeRegion(), wholeRegion(), wholeRegion()}
	stop := errors.New("stop")

	var seen int
	err = e.Run(context.Background(), regions, func(WorkResult) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestRun_NoRegions(t *testing.T) {
	e, err := NewEngine(testReads(), nil, testRef(), somaticScorer(), testConfig())
	require.NoError(t, err)

	err = e.Run(context.Background(), nil, func(WorkResult) error {
		t.Fatal("unexpected result")
		return nil
	})
	assert.NoError(t, err)
}
