package consolidate

import (
	"fmt"
	"sort"

	"github.com/inodb/vibe-indel/internal/align"
)

// MatchStatus describes how a candidate was reconciled against the
// region's composite events.
type MatchStatus int

const (
	// MatchExact: the candidate's allele and position were observed directly.
	MatchExact MatchStatus = iota
	// MatchRescued: a nearby compatible composite was substituted.
	MatchRescued
	// MatchNone: no compatible alignment evidence exists in the window.
	MatchNone
)

func (s MatchStatus) String() string {
	switch s {
	case MatchExact:
		return "exact"
	case MatchRescued:
		return "rescued"
	default:
		return "unmatched"
	}
}

// RescueNote records the originally requested allele when a different
// composite was substituted, so downstream consumers can audit the
// substitution.
type RescueNote struct {
	RequestedChrom string
	RequestedPos   int64
	RequestedRef   string
	RequestedAlt   string
}

func (n *RescueNote) String() string {
	return fmt.Sprintf("%s:%d%s>%s", n.RequestedChrom, n.RequestedPos, n.RequestedRef, n.RequestedAlt)
}

// Reconciled links a candidate (or directly observed event) to the
// composite actually used for feature extraction. Composite is nil only
// when Status is MatchNone; Rescue is non-nil only when Status is
// MatchRescued.
type Reconciled struct {
	Composite *Composite
	Candidate *align.Candidate
	Status    MatchStatus
	Rescue    *RescueNote
}

// RescueConfig holds reconciliation parameters.
type RescueConfig struct {
	// Window bounds the position search for rescue, in reference bases
	// either side of the requested position.
	Window int64
	// MinSupport is the minimum supporting-read count for an event to be
	// reported when calling purely from alignment evidence.
	MinSupport int
}

// Validate checks parameter sanity.
func (c RescueConfig) Validate() error {
	if c.Window < 0 {
		return fmt.Errorf("rescue window must be >= 0, got %d", c.Window)
	}
	if c.MinSupport < 1 {
		return fmt.Errorf("min support must be >= 1, got %d", c.MinSupport)
	}
	return nil
}

// Reconcile matches each candidate against the indexed composites.
// Exact allele+position matches win; otherwise the closest compatible
// composite within the window is substituted and annotated as rescued.
// Candidates with no compatible evidence are returned as MatchNone,
// never dropped. The operation is idempotent: re-running against the
// same evidence yields identical substitutions.
func Reconcile(idx *Index, candidates []*align.Candidate, cfg RescueConfig) []*Reconciled {
	out := make([]*Reconciled, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, reconcileOne(idx, cand, cfg))
	}
	return out
}

func reconcileOne(idx *Index, cand *align.Candidate, cfg RescueConfig) *Reconciled {
	key := fmt.Sprintf("%s:%d:%s:%s", cand.Chrom, cand.Pos, cand.Ref, cand.Alt)
	if comp := idx.Exact(key); comp != nil {
		return &Reconciled{Composite: comp, Candidate: cand, Status: MatchExact}
	}

	if best := nearestCompatible(idx, cand, cfg.Window); best != nil {
		return &Reconciled{
			Composite: best,
			Candidate: cand,
			Status:    MatchRescued,
			Rescue: &RescueNote{
				RequestedChrom: cand.Chrom,
				RequestedPos:   cand.Pos,
				RequestedRef:   cand.Ref,
				RequestedAlt:   cand.Alt,
			},
		}
	}

	return &Reconciled{Candidate: cand, Status: MatchNone}
}

// nearestCompatible selects the rescue substitute: among composites in
// the window that run in the same direction and share a variant-sequence
// prefix with the request, the closest wins; ties prefer higher
// supporting-read count, then lower complexity (the simpler
// explanation), then position/allele order for full determinism.
func nearestCompatible(idx *Index, cand *align.Candidate, window int64) *Composite {
	nearby := idx.FindRange(cand.Pos-window, cand.Pos+window)
	if len(nearby) == 0 {
		return nil
	}

	reqVar := candidateVariant(cand)
	var compatible []*Composite
	for _, comp := range nearby {
		// FindRange matches by span overlap; a long event can overlap the
		// window while its own position sits outside it.
		if absDist(comp.Pos, cand.Pos) > window {
			continue
		}
		if comp.IsInsertion() != cand.IsInsertion() {
			continue
		}
		if commonPrefixLen(reqVar, comp.Variant()) < 1 {
			continue
		}
		compatible = append(compatible, comp)
	}
	if len(compatible) == 0 {
		return nil
	}

	sort.Slice(compatible, func(i, j int) bool {
		di, dj := absDist(compatible[i].Pos, cand.Pos), absDist(compatible[j].Pos, cand.Pos)
		if di != dj {
			return di < dj
		}
		if compatible[i].Support != compatible[j].Support {
			return compatible[i].Support > compatible[j].Support
		}
		if compatible[i].Complexity != compatible[j].Complexity {
			return compatible[i].Complexity < compatible[j].Complexity
		}
		if compatible[i].Pos != compatible[j].Pos {
			return compatible[i].Pos < compatible[j].Pos
		}
		return compatible[i].Alt < compatible[j].Alt
	})
	return compatible[0]
}

// DirectCalls promotes alignment-observed composites to reconciled
// indels when no external candidates were supplied. Events below the
// support threshold are left out (single-read artifacts dominate there).
func DirectCalls(composites []*Composite, cfg RescueConfig) []*Reconciled {
	var out []*Reconciled
	for _, comp := range composites {
		if comp.Support < cfg.MinSupport {
			continue
		}
		out = append(out, &Reconciled{Composite: comp, Status: MatchExact})
	}
	return out
}

// candidateVariant strips the anchor base shared by ref and alt.
func candidateVariant(c *align.Candidate) string {
	prefix := commonPrefixLen(c.Ref, c.Alt)
	if c.IsInsertion() {
		return c.Alt[prefix:]
	}
	return c.Ref[prefix:]
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func absDist(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
