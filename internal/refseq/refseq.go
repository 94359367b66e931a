// Package refseq provides reference-sequence context lookups for indel
// normalization and feature extraction.
package refseq

import "fmt"

// Provider returns reference bases for a 1-based inclusive interval.
// Implementations must be safe for concurrent use after construction.
type Provider interface {
	Context(chrom string, start, end int64) (string, error)
}

// InMemory serves reference context from a chrom -> sequence map.
// Sequences are uppercase reference bases starting at position 1.
type InMemory struct {
	Sequences map[string]string
}

// Context returns the requested interval, clamped to the sequence bounds.
func (m *InMemory) Context(chrom string, start, end int64) (string, error) {
	seq, ok := m.Sequences[chrom]
	if !ok {
		return "", fmt.Errorf("refseq: unknown chromosome %q", chrom)
	}
	if start < 1 {
		start = 1
	}
	if end > int64(len(seq)) {
		end = int64(len(seq))
	}
	if start > end {
		return "", nil
	}
	return seq[start-1 : end], nil
}
