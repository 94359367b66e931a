package vcf

import (
	"context"
	"io"
	"sort"

	"github.com/inodb/vibe-indel/internal/align"
)

// CandidateSet is an in-memory candidate source loaded from a VCF file.
// Only indel records are kept; SNVs and other variant classes are
// skipped. Multi-allelic lines are split into one candidate per alt.
type CandidateSet struct {
	candidates []*align.Candidate
	source     string
	skipped    int
}

// LoadCandidates reads the whole VCF at path into a CandidateSet.
// source labels the external caller the file came from and is stamped
// on every candidate.
func LoadCandidates(path, source string) (*CandidateSet, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return readCandidates(p, source)
}

// ReadCandidates loads candidates from an io.Reader.
func ReadCandidates(r io.Reader, source string) (*CandidateSet, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return readCandidates(p, source)
}

func readCandidates(p *Parser, source string) (*CandidateSet, error) {
	set := &CandidateSet{source: source}
	for {
		v, err := p.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}
		for _, sv := range SplitMultiAllelic(v) {
			if !sv.IsIndel() {
				set.skipped++
				continue
			}
			set.candidates = append(set.candidates, &align.Candidate{
				Chrom:  sv.NormalizeChrom(),
				Pos:    sv.Pos,
				Ref:    sv.Ref,
				Alt:    sv.Alt,
				Source: source,
			})
		}
	}

	sort.Slice(set.candidates, func(i, j int) bool {
		a, b := set.candidates[i], set.candidates[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return a.Alt < b.Alt
	})
	return set, nil
}

// FetchCandidates returns candidates positioned inside the region, in
// position order.
func (s *CandidateSet) FetchCandidates(_ context.Context, region align.Region) ([]*align.Candidate, error) {
	var out []*align.Candidate
	for _, c := range s.candidates {
		if c.Chrom == region.Chrom && region.Contains(c.Pos) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of loaded indel candidates.
func (s *CandidateSet) Len() int {
	return len(s.candidates)
}

// Skipped returns the number of non-indel records dropped during load.
func (s *CandidateSet) Skipped() int {
	return s.skipped
}

// Regions returns one region per chromosome spanning the loaded
// candidates, padded either side, suitable as pipeline input when no
// explicit region list is given.
func (s *CandidateSet) Regions(pad int64) []align.Region {
	type span struct {
		min, max int64
	}
	spans := make(map[string]*span)
	var order []string
	for _, c := range s.candidates {
		sp, ok := spans[c.Chrom]
		if !ok {
			spans[c.Chrom] = &span{min: c.Pos, max: c.Pos}
			order = append(order, c.Chrom)
			continue
		}
		if c.Pos < sp.min {
			sp.min = c.Pos
		}
		if c.Pos > sp.max {
			sp.max = c.Pos
		}
	}

	out := make([]align.Region, 0, len(order))
	for _, chrom := range order {
		sp := spans[chrom]
		start := sp.min - pad
		if start < 1 {
			start = 1
		}
		out = append(out, align.Region{Chrom: chrom, Start: start, End: sp.max + pad})
	}
	return out
}
