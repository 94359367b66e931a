// Package consolidate turns scattered per-read indel observations into
// composite indel events and reconciles externally supplied candidates
// against them.
package consolidate

import (
	"fmt"

	"github.com/willf/bitset"
)

// Composite is a consolidated genomic indel event. Pos/Ref/Alt use the
// VCF convention: Pos is the anchor base immediately left of the event
// and both alleles include it. Complexity counts the elementary CIGAR
// edits folded into the event.
//
// Invariants: Complexity >= 1; Support <= Depth.
type Composite struct {
	Chrom           string
	Pos             int64
	Ref             string
	Alt             string
	Complexity      int
	Support         int
	Depth           int
	ForwardSupport  int
	ReverseSupport  int
	SoftClipSupport int
	MeanBaseQual    float64
	MeanMapQ        float64

	supportSet *bitset.BitSet
}

// Key identifies the event by allele and position.
func (c *Composite) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", c.Chrom, c.Pos, c.Ref, c.Alt)
}

// IsInsertion reports whether the event is a net insertion.
func (c *Composite) IsInsertion() bool {
	return len(c.Alt) > len(c.Ref)
}

// IndelLength is the net number of inserted or deleted bases.
func (c *Composite) IndelLength() int {
	n := len(c.Alt) - len(c.Ref)
	if n < 0 {
		n = -n
	}
	return n
}

// Variant returns the event sequence without the anchor base: the
// inserted bases for insertions, the deleted bases for deletions.
func (c *Composite) Variant() string {
	if c.IsInsertion() {
		return c.Alt[len(c.Ref):]
	}
	return c.Ref[len(c.Alt):]
}

// RefEnd is the last reference base covered by the event.
func (c *Composite) RefEnd() int64 {
	return c.Pos + int64(len(c.Ref)) - 1
}

func (c *Composite) String() string {
	return fmt.Sprintf("%s:%d%s>%s (x%d, %d/%d)", c.Chrom, c.Pos, c.Ref, c.Alt, c.Complexity, c.Support, c.Depth)
}
