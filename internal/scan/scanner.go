// Package scan extracts raw indel observations from aligned reads by
// walking CIGAR operations over a genomic region.
package scan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/refseq"
)

// Kind is the elementary edit type of an observation.
type Kind int

const (
	Insertion Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Insertion {
		return "insertion"
	}
	return "deletion"
}

// Observation is one read's evidence of a single insertion or deletion.
// For deletions Pos is the first deleted reference base; for insertions
// Pos is the reference base immediately left of the inserted sequence.
// Seq holds the inserted or deleted bases. Observations are immutable
// and discarded after consolidation.
type Observation struct {
	ReadIndex   int
	Chrom       string
	Pos         int64
	Kind        Kind
	Seq         string
	MapQ        int
	BaseQual    float64
	SoftClipped bool
	Reverse     bool
}

// Span is the reference interval covered by one read, used for depth
// computation without re-walking CIGARs.
type Span struct {
	ReadIndex   int
	Start       int64
	End         int64
	MapQ        int
	SoftClipped bool
	Reverse     bool
}

// Evidence is the scanner output for one region.
type Evidence struct {
	Region       align.Region
	Observations []Observation
	Spans        []Span
}

// Config holds scanner quality filters.
type Config struct {
	MinMapQ     int     // reads below this mapping quality are skipped
	MinBaseQual float64 // observations with lower mean base quality at the edit are skipped
}

// Scanner extracts indel observations from an alignment source.
type Scanner struct {
	source align.ReadSource
	ref    refseq.Provider
	cfg    Config
	logger *zap.Logger
}

// New creates a Scanner over the given read source and reference provider.
func New(source align.ReadSource, ref refseq.Provider, cfg Config) *Scanner {
	return &Scanner{
		source: source,
		ref:    ref,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for per-read warnings.
func (s *Scanner) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Scan fetches reads overlapping the region and extracts every
// indel-bearing CIGAR operation whose anchor falls inside the region.
// A region with zero coverage yields empty Evidence, not an error.
func (s *Scanner) Scan(ctx context.Context, region align.Region) (*Evidence, error) {
	reads, err := s.source.FetchReads(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("%w: region %s: %v", align.ErrEvidenceUnavailable, region, err)
	}

	ev := &Evidence{Region: region}
	for i, r := range reads {
		if r.MapQ < s.cfg.MinMapQ {
			continue
		}
		obs, err := s.scanRead(i, r, region)
		if err != nil {
			s.logger.Warn("skipping unparseable read",
				zap.String("read", r.Name),
				zap.String("region", region.String()),
				zap.Error(err))
			continue
		}
		ev.Spans = append(ev.Spans, Span{
			ReadIndex:   i,
			Start:       r.Pos,
			End:         r.End(),
			MapQ:        r.MapQ,
			SoftClipped: r.HasSoftClip(),
			Reverse:     r.Reverse,
		})
		ev.Observations = append(ev.Observations, obs...)
	}
	return ev, nil
}

// scanRead walks one read's CIGAR and returns its indel observations.
func (s *Scanner) scanRead(index int, r *align.Read, region align.Region) ([]Observation, error) {
	var out []Observation
	refPos := r.Pos
	readPos := 0
	softClipped := r.HasSoftClip()

	for _, op := range r.Cigar {
		switch op.Op {
		case align.OpMatch, align.OpEqual, align.OpDiff:
			refPos += int64(op.Len)
			readPos += op.Len

		case align.OpIns:
			if readPos+op.Len > len(r.Seq) {
				return nil, fmt.Errorf("cigar overruns sequence at insertion (read pos %d)", readPos)
			}
			anchor := refPos - 1
			if region.Contains(anchor) {
				obs := Observation{
					ReadIndex:   index,
					Chrom:       r.Chrom,
					Pos:         anchor,
					Kind:        Insertion,
					Seq:         r.Seq[readPos : readPos+op.Len],
					MapQ:        r.MapQ,
					BaseQual:    meanQual(r.Quals, readPos, readPos+op.Len),
					SoftClipped: softClipped,
					Reverse:     r.Reverse,
				}
				if obs.BaseQual >= s.cfg.MinBaseQual {
					out = append(out, obs)
				}
			}
			readPos += op.Len

		case align.OpDel:
			if region.Contains(refPos) {
				deleted, err := s.ref.Context(r.Chrom, refPos, refPos+int64(op.Len)-1)
				if err != nil {
					return nil, fmt.Errorf("deleted bases at %s:%d: %w", r.Chrom, refPos, err)
				}
				obs := Observation{
					ReadIndex:   index,
					Chrom:       r.Chrom,
					Pos:         refPos,
					Kind:        Deletion,
					Seq:         deleted,
					MapQ:        r.MapQ,
					BaseQual:    meanQual(r.Quals, readPos-1, readPos+1),
					SoftClipped: softClipped,
					Reverse:     r.Reverse,
				}
				if obs.BaseQual >= s.cfg.MinBaseQual {
					out = append(out, obs)
				}
			}
			refPos += int64(op.Len)

		case align.OpSkip:
			refPos += int64(op.Len)

		case align.OpSoftClip:
			readPos += op.Len

		case align.OpHardClip, align.OpPad:
			// consume neither read nor reference
		}
	}
	return out, nil
}

// meanQual averages Phred qualities over [from, to), clamped to the
// quality slice. Reads without stored qualities score 0.
func meanQual(quals []byte, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(quals) {
		to = len(quals)
	}
	if from >= to {
		return 0
	}
	var sum int
	for _, q := range quals[from:to] {
		sum += int(q)
	}
	return float64(sum) / float64(to-from)
}
