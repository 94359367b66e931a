package align

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SAM flag bits consulted during loading.
const (
	flagUnmapped  = 0x4
	flagReverse   = 0x10
	flagSecondary = 0x100
	flagDuplicate = 0x400
)

// LoadSAM reads a SAM text file (plain or gzipped) into a
// SliceReadSource. Header lines, unmapped reads, secondary alignments,
// and duplicates are skipped.
func LoadSAM(path string) (*SliceReadSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sam file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return ReadSAM(reader)
}

// ReadSAM parses SAM records from an io.Reader.
func ReadSAM(r io.Reader) (*SliceReadSource, error) {
	source := &SliceReadSource{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}

		read, skip, err := parseSAMLine(line)
		if err != nil {
			return nil, fmt.Errorf("sam line %d: %w", lineNum, err)
		}
		if skip {
			continue
		}
		source.Reads = append(source.Reads, read)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sam: %w", err)
	}
	return source, nil
}

// parseSAMLine parses one alignment line. skip is true for records the
// pipeline never consumes (unmapped, secondary, duplicate, no CIGAR).
func parseSAMLine(line string) (read *Read, skip bool, err error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 11 {
		return nil, false, fmt.Errorf("expected at least 11 columns, found %d", len(fields))
	}

	flags, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, false, fmt.Errorf("invalid flag: %s", fields[1])
	}
	if flags&(flagUnmapped|flagSecondary|flagDuplicate) != 0 {
		return nil, true, nil
	}
	if fields[5] == "*" {
		return nil, true, nil
	}

	pos, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("invalid position: %s", fields[3])
	}
	mapq, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, false, fmt.Errorf("invalid mapping quality: %s", fields[4])
	}
	cigar, err := ParseCigar(fields[5])
	if err != nil {
		return nil, false, err
	}

	seq := fields[9]
	if seq == "*" {
		seq = ""
	}

	var quals []byte
	if fields[10] != "*" {
		quals = make([]byte, len(fields[10]))
		for i := 0; i < len(fields[10]); i++ {
			quals[i] = fields[10][i] - 33
		}
	}

	return &Read{
		Name:    fields[0],
		Chrom:   strings.TrimPrefix(fields[2], "chr"),
		Pos:     pos,
		MapQ:    mapq,
		Cigar:   cigar,
		Seq:     strings.ToUpper(seq),
		Quals:   quals,
		Reverse: flags&flagReverse != 0,
	}, false, nil
}
