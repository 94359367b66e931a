package consolidate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/willf/bitset"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-indel/internal/refseq"
	"github.com/inodb/vibe-indel/internal/scan"
)

// Config holds consolidation parameters.
type Config struct {
	// MergeGap is the maximum number of reference bases between two
	// elementary edits on the same read for them to fold into one
	// composite event. 0 merges only adjacent edits.
	MergeGap int
}

// Validate checks parameter sanity.
func (c Config) Validate() error {
	if c.MergeGap < 0 {
		return fmt.Errorf("merge gap must be >= 0, got %d", c.MergeGap)
	}
	return nil
}

// Consolidator merges per-read observations into Composite events.
type Consolidator struct {
	ref refseq.Provider
	cfg Config
}

// New creates a Consolidator over the given reference provider.
func New(ref refseq.Provider, cfg Config) *Consolidator {
	return &Consolidator{ref: ref, cfg: cfg}
}

// Consolidate groups the region's observations into composite events.
// The result is sorted by position then allele and is independent of
// observation order. A region with no observations yields an empty set.
func (c *Consolidator) Consolidate(ev *scan.Evidence) ([]*Composite, error) {
	// Per-read edit lists, sorted by reference position.
	byRead := make(map[int][]scan.Observation)
	for _, obs := range ev.Observations {
		byRead[obs.ReadIndex] = append(byRead[obs.ReadIndex], obs)
	}

	type accum struct {
		composite *Composite
		baseQuals []float64
		mapQuals  []float64
	}
	events := make(map[string]*accum)

	// Walk reads in index order so quality accumulation, and with it the
	// floating-point means, never depend on map iteration order.
	readIndexes := make([]int, 0, len(byRead))
	for readIndex := range byRead {
		readIndexes = append(readIndexes, readIndex)
	}
	sort.Ints(readIndexes)

	for _, readIndex := range readIndexes {
		edits := byRead[readIndex]
		sort.Slice(edits, func(i, j int) bool {
			if edits[i].Pos != edits[j].Pos {
				return edits[i].Pos < edits[j].Pos
			}
			// Deletion sorts before insertion at the same anchor.
			return edits[i].Kind == scan.Deletion && edits[j].Kind == scan.Insertion
		})

		for _, cluster := range c.clusterEdits(edits) {
			comp, err := c.buildComposite(cluster)
			if err != nil {
				return nil, err
			}

			acc, ok := events[comp.Key()]
			if !ok {
				comp.supportSet = bitset.New(64)
				acc = &accum{composite: comp}
				events[comp.Key()] = acc
			}
			if acc.composite.supportSet.Test(uint(readIndex)) {
				continue // a read supports an event at most once
			}
			acc.composite.supportSet.Set(uint(readIndex))
			if comp.Complexity > acc.composite.Complexity {
				// Reads may represent the same net allele with different
				// edit fragmentations; keep the most fragmented count.
				acc.composite.Complexity = comp.Complexity
			}

			first := cluster[0]
			if first.Reverse {
				acc.composite.ReverseSupport++
			} else {
				acc.composite.ForwardSupport++
			}
			if first.SoftClipped {
				acc.composite.SoftClipSupport++
			}
			acc.baseQuals = append(acc.baseQuals, clusterMean(cluster, func(o scan.Observation) float64 { return o.BaseQual }))
			acc.mapQuals = append(acc.mapQuals, clusterMean(cluster, func(o scan.Observation) float64 { return float64(o.MapQ) }))
		}
	}

	out := make([]*Composite, 0, len(events))
	for _, acc := range events {
		comp := acc.composite
		comp.Support = int(comp.supportSet.Count())
		comp.Depth = depthAt(ev.Spans, comp.Pos)
		if comp.Depth < comp.Support {
			// An edit at the very first aligned base anchors one position
			// left of the read span; count those reads as spanning.
			comp.Depth = comp.Support
		}
		comp.MeanBaseQual = mean(acc.baseQuals)
		comp.MeanMapQ = mean(acc.mapQuals)
		out = append(out, comp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos != out[j].Pos {
			return out[i].Pos < out[j].Pos
		}
		if out[i].Ref != out[j].Ref {
			return out[i].Ref < out[j].Ref
		}
		return out[i].Alt < out[j].Alt
	})
	return out, nil
}

// clusterEdits splits one read's sorted edits into clusters of edits no
// more than MergeGap reference bases apart.
func (c *Consolidator) clusterEdits(edits []scan.Observation) [][]scan.Observation {
	var clusters [][]scan.Observation
	var current []scan.Observation
	var currentEnd int64

	for _, e := range edits {
		start, end := editSpan(e)
		if len(current) > 0 && start-currentEnd <= int64(c.cfg.MergeGap)+1 {
			current = append(current, e)
		} else {
			if len(current) > 0 {
				clusters = append(clusters, current)
			}
			current = []scan.Observation{e}
		}
		if end > currentEnd {
			currentEnd = end
		}
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

// editSpan returns the reference bases occupied by an elementary edit.
// Insertions occupy only their anchor base.
func editSpan(o scan.Observation) (start, end int64) {
	if o.Kind == scan.Insertion {
		return o.Pos, o.Pos
	}
	return o.Pos, o.Pos + int64(len(o.Seq)) - 1
}

// buildComposite reconstructs the net allele implied by a cluster of
// elementary edits on one read. Matched reference bases between merged
// edits are kept in both alleles, deleted bases are dropped from the
// alt, inserted bases are added to it. The result is left-normalized.
func (c *Consolidator) buildComposite(cluster []scan.Observation) (*Composite, error) {
	chrom := cluster[0].Chrom

	// Anchor is one base left of the first replaced reference base for
	// deletions, the anchor base itself for insertions.
	anchor := int64(-1)
	end := int64(-1)
	deleted := make(map[int64]int64)    // deletion start -> end
	inserted := make(map[int64]string)  // insertion anchor -> bases
	for _, e := range cluster {
		var a, b int64
		if e.Kind == scan.Insertion {
			a, b = e.Pos, e.Pos
			inserted[e.Pos] += e.Seq
		} else {
			a, b = e.Pos-1, e.Pos+int64(len(e.Seq))-1
			deleted[e.Pos] = b
		}
		if anchor == -1 || a < anchor {
			anchor = a
		}
		if b > end {
			end = b
		}
	}
	if anchor < 1 {
		anchor = 1
	}

	refAllele, err := c.ref.Context(chrom, anchor, end)
	if err != nil {
		return nil, fmt.Errorf("composite allele at %s:%d: %w", chrom, anchor, err)
	}
	if int64(len(refAllele)) != end-anchor+1 {
		return nil, fmt.Errorf("reference context truncated at %s:%d-%d", chrom, anchor, end)
	}

	var alt strings.Builder
	for p := anchor; p <= end; p++ {
		if delEnd, ok := deleted[p]; ok {
			p = delEnd
		} else {
			alt.WriteByte(refAllele[p-anchor])
		}
		if ins, ok := inserted[p]; ok {
			alt.WriteString(ins)
		}
	}

	pos, ref, altAllele, err := c.normalize(chrom, anchor, refAllele, alt.String())
	if err != nil {
		return nil, err
	}

	return &Composite{
		Chrom:      chrom,
		Pos:        pos,
		Ref:        ref,
		Alt:        altAllele,
		Complexity: len(cluster),
	}, nil
}

// normalize left-aligns an allele pair: shared trailing bases are
// trimmed (shifting into the reference when the pair bottoms out) and
// shared leading bases beyond the anchor are dropped. Keeps at least
// one base in each allele.
func (c *Consolidator) normalize(chrom string, pos int64, ref, alt string) (int64, string, string, error) {
	for {
		// Trim common suffix while both alleles stay non-empty.
		for len(ref) > 1 && len(alt) > 1 && ref[len(ref)-1] == alt[len(alt)-1] {
			ref = ref[:len(ref)-1]
			alt = alt[:len(alt)-1]
		}

		// Shift left when the alleles still share their last base.
		if len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] && pos > 1 {
			base, err := c.ref.Context(chrom, pos-1, pos-1)
			if err != nil || base == "" {
				break
			}
			ref = base + ref[:len(ref)-1]
			alt = base + alt[:len(alt)-1]
			pos--
			continue
		}
		break
	}

	// Trim common prefix beyond the anchor base.
	for len(ref) > 1 && len(alt) > 1 && ref[0] == alt[0] && ref[1] == alt[1] {
		ref = ref[1:]
		alt = alt[1:]
		pos++
	}

	return pos, ref, alt, nil
}

// depthAt counts reads whose span covers pos.
func depthAt(spans []scan.Span, pos int64) int {
	var n int
	for _, s := range spans {
		if s.Start <= pos && pos <= s.End {
			n++
		}
	}
	return n
}

func clusterMean(cluster []scan.Observation, f func(scan.Observation) float64) float64 {
	vals := make([]float64, len(cluster))
	for i, o := range cluster {
		vals[i] = f(o)
	}
	return stat.Mean(vals, nil)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
