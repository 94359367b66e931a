package align

import (
	"context"
	"errors"
)

// ErrEvidenceUnavailable indicates the alignment source could not be
// queried for a region. It is surfaced per region and never retried here;
// retry policy belongs to the source implementation.
var ErrEvidenceUnavailable = errors.New("alignment evidence unavailable")

// ReadSource provides aligned reads overlapping a region. Implemented by
// the external alignment I/O collaborator (BAM reader, test fixture, ...).
type ReadSource interface {
	FetchReads(ctx context.Context, region Region) ([]*Read, error)
}

// CandidateSource provides externally called candidate indels for a
// region. May return an empty slice when the pipeline is asked to call
// indels purely from alignment evidence.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, region Region) ([]*Candidate, error)
}

// SliceReadSource serves reads from an in-memory slice, filtering by
// overlap with the requested region. Used by tests and small inputs.
type SliceReadSource struct {
	Reads []*Read
}

// FetchReads returns reads whose alignment span overlaps the region.
func (s *SliceReadSource) FetchReads(_ context.Context, region Region) ([]*Read, error) {
	var out []*Read
	for _, r := range s.Reads {
		if r.Chrom != region.Chrom {
			continue
		}
		if r.End() < region.Start || r.Pos > region.End {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SliceCandidateSource serves candidates from an in-memory slice.
type SliceCandidateSource struct {
	Candidates []*Candidate
}

// FetchCandidates returns candidates positioned inside the region.
func (s *SliceCandidateSource) FetchCandidates(_ context.Context, region Region) ([]*Candidate, error) {
	var out []*Candidate
	for _, c := range s.Candidates {
		if c.Chrom == region.Chrom && region.Contains(c.Pos) {
			out = append(out, c)
		}
	}
	return out, nil
}
