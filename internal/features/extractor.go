package features

import (
	"fmt"
	"math"

	"github.com/inodb/vibe-indel/internal/consolidate"
	"github.com/inodb/vibe-indel/internal/refseq"
)

// AnnotationProvider supplies cohort/reference annotations for an
// allele. Implementations must be deterministic; the default provider
// returns 0 for everything.
type AnnotationProvider interface {
	PopulationFrequency(chrom string, pos int64, ref, alt string) float64
}

type zeroAnnotations struct{}

func (zeroAnnotations) PopulationFrequency(string, int64, string, string) float64 { return 0 }

// DefaultFlank is the number of reference bases examined either side of
// the event for sequence-context features.
const DefaultFlank = 20

// Extractor maps a reconciled indel to a feature Vector. All features
// are deterministic functions of the composite's aggregates and static
// reference context; there is no randomness and no external lookup
// beyond the providers given at construction.
type Extractor struct {
	ref   refseq.Provider
	ann   AnnotationProvider
	flank int64
}

// New creates an Extractor over the given reference provider.
func New(ref refseq.Provider) *Extractor {
	return &Extractor{ref: ref, ann: zeroAnnotations{}, flank: DefaultFlank}
}

// SetAnnotations configures the cohort annotation provider.
func (e *Extractor) SetAnnotations(p AnnotationProvider) {
	e.ann = p
}

// SetFlank configures the sequence-context window size.
func (e *Extractor) SetFlank(n int64) {
	if n > 0 {
		e.flank = n
	}
}

// Extract computes the feature vector for a reconciled indel. The
// vector is total: every schema key is populated, with defaults (vaf 0
// at zero depth, strand ratio 0.5 at zero support) when evidence is
// missing. Unmatched indels have no composite and cannot be extracted.
func (e *Extractor) Extract(rec *consolidate.Reconciled) (*Vector, error) {
	if rec == nil || rec.Composite == nil {
		return nil, fmt.Errorf("features: no composite to extract from")
	}
	c := rec.Composite

	v := NewVector()

	if c.Depth > 0 {
		v.Set(VAF, float64(c.Support)/float64(c.Depth))
	}
	v.Set(IndelLength, float64(c.IndelLength()))
	v.Set(Complexity, float64(c.Complexity))
	v.Set(Support, float64(c.Support))
	v.Set(LogDepth, math.Log10(float64(c.Depth)+1))
	if c.Support > 0 {
		v.Set(SoftClipRatio, float64(c.SoftClipSupport)/float64(c.Support))
	}
	v.Set(MeanBaseQual, c.MeanBaseQual)
	v.Set(MeanMapQual, c.MeanMapQ)

	strand := 0.5
	if total := c.ForwardSupport + c.ReverseSupport; total > 0 {
		strand = float64(c.ForwardSupport) / float64(total)
	}
	v.Set(StrandRatio, strand)

	if c.IsInsertion() {
		v.Set(IsInsertion, 1)
	}

	e.setContextFeatures(v, c)
	v.Set(PopulationFreq, e.ann.PopulationFrequency(c.Chrom, c.Pos, c.Ref, c.Alt))

	return v, nil
}

// setContextFeatures computes homopolymer, repeat, and GC features from
// the reference flank. A missing reference context leaves the defaults
// in place rather than failing extraction.
func (e *Extractor) setContextFeatures(v *Vector, c *consolidate.Composite) {
	start := c.Pos - e.flank
	end := c.RefEnd() + e.flank
	seq, err := e.ref.Context(c.Chrom, start, end)
	if err != nil || seq == "" {
		return
	}
	if start < 1 {
		start = 1
	}

	// Index of the first base after the anchor within the flank window.
	site := int(c.Pos + 1 - start)
	if site < 0 {
		site = 0
	}
	if site >= len(seq) {
		site = len(seq) - 1
	}

	v.Set(HomopolymerLen, float64(homopolymerRun(seq, site)))
	v.Set(DinucRepeats, float64(dinucRepeats(seq, site)))
	v.Set(FlankGC, gcContent(seq))
}

// homopolymerRun returns the length of the single-base run covering idx.
func homopolymerRun(seq string, idx int) int {
	base := seq[idx]
	n := 1
	for i := idx - 1; i >= 0 && seq[i] == base; i-- {
		n++
	}
	for i := idx + 1; i < len(seq) && seq[i] == base; i++ {
		n++
	}
	return n
}

// dinucRepeats counts consecutive copies of the 2-mer starting at idx.
func dinucRepeats(seq string, idx int) int {
	if idx+2 > len(seq) {
		return 0
	}
	unit := seq[idx : idx+2]
	if unit[0] == unit[1] {
		return 0 // homopolymer, not a dinucleotide repeat
	}
	n := 1
	for i := idx + 2; i+2 <= len(seq) && seq[i:i+2] == unit; i += 2 {
		n++
	}
	for i := idx - 2; i >= 0 && seq[i:i+2] == unit; i -= 2 {
		n++
	}
	return n
}

func gcContent(seq string) float64 {
	if len(seq) == 0 {
		return 0
	}
	var gc int
	for i := 0; i < len(seq); i++ {
		if seq[i] == 'G' || seq[i] == 'C' {
			gc++
		}
	}
	return float64(gc) / float64(len(seq))
}
