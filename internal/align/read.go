// Package align defines the alignment-record model consumed by the indel
// pipeline, plus the interfaces behind which the external read and
// candidate providers live.
package align

import "fmt"

// Read is one aligned sequencing read. Pos is the 1-based reference
// position of the first aligned base. Quals are Phred base qualities,
// one per sequence base.
type Read struct {
	Name    string
	Chrom   string
	Pos     int64
	MapQ    int
	Cigar   []CigarOp
	Seq     string
	Quals   []byte
	Reverse bool
}

// End returns the 1-based reference position of the last aligned base.
func (r *Read) End() int64 {
	return r.Pos + int64(ReferenceLength(r.Cigar)) - 1
}

// HasSoftClip reports whether the alignment is soft-clipped at either end.
func (r *Read) HasSoftClip() bool {
	if len(r.Cigar) == 0 {
		return false
	}
	return r.Cigar[0].Op == OpSoftClip || r.Cigar[len(r.Cigar)-1].Op == OpSoftClip
}

// Region is a 1-based inclusive genomic interval.
type Region struct {
	Chrom string
	Start int64
	End   int64
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// Contains reports whether pos falls inside the region.
func (r Region) Contains(pos int64) bool {
	return pos >= r.Start && pos <= r.End
}

// Candidate is an externally supplied indel awaiting reconciliation
// against alignment evidence. Ref and Alt are VCF-style alleles sharing
// a leading anchor base. Candidates are read-only inputs.
type Candidate struct {
	Chrom  string
	Pos    int64
	Ref    string
	Alt    string
	Source string
}

// IsInsertion reports whether the candidate describes a net insertion.
func (c *Candidate) IsInsertion() bool {
	return len(c.Alt) > len(c.Ref)
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%s:%d%s>%s", c.Chrom, c.Pos, c.Ref, c.Alt)
}
