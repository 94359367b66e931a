package refseq

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// FASTA holds a reference genome loaded from a FASTA file, indexed by
// chromosome name. Headers are split on the first whitespace, so
// ">chr1 AC:CM000663.2" indexes as "chr1".
type FASTA struct {
	sequences map[string]string
}

// LoadFASTA reads a reference FASTA file (plain or gzipped) fully into
// memory. Suitable for targeted panels and test references; whole-genome
// callers should supply a windowed Provider instead.
func LoadFASTA(path string) (*FASTA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	fa := &FASTA{sequences: make(map[string]string)}
	if err := fa.parse(reader); err != nil {
		return nil, err
	}
	return fa, nil
}

func (fa *FASTA) parse(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024) // 10MB max line

	var currentChrom string
	var currentSeq strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ">") {
			if currentChrom != "" && currentSeq.Len() > 0 {
				fa.sequences[currentChrom] = currentSeq.String()
			}
			currentChrom = parseChrom(line)
			currentSeq.Reset()
		} else {
			currentSeq.WriteString(strings.ToUpper(strings.TrimSpace(line)))
		}
	}

	if currentChrom != "" && currentSeq.Len() > 0 {
		fa.sequences[currentChrom] = currentSeq.String()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}
	return nil
}

// parseChrom extracts the chromosome name from a FASTA header line.
func parseChrom(header string) string {
	header = strings.TrimPrefix(header, ">")
	if idx := strings.IndexAny(header, " \t"); idx != -1 {
		return header[:idx]
	}
	return header
}

// Context returns reference bases for a 1-based inclusive interval,
// clamped to the chromosome bounds.
func (fa *FASTA) Context(chrom string, start, end int64) (string, error) {
	seq, ok := fa.sequences[chrom]
	if !ok {
		// Tolerate "chr" prefix mismatches between BAM and FASTA naming.
		alt := strings.TrimPrefix(chrom, "chr")
		if alt == chrom {
			alt = "chr" + chrom
		}
		if seq, ok = fa.sequences[alt]; !ok {
			return "", fmt.Errorf("refseq: chromosome %q not in reference", chrom)
		}
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

// ChromCount returns the number of loaded chromosomes.
func (fa *FASTA) ChromCount() int {
	return len(fa.sequences)
}
