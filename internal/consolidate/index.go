package consolidate

import "sort"

// Index provides O(log n + k) range queries over composite events using
// a sorted-slice approach. Events are indexed once per region and never
// modified after build.
type Index struct {
	intervals []indexEntry
	maxEnd    []int64 // maxEnd[i] = max(RefEnd) for intervals[i:]
	byKey     map[string]*Composite
}

type indexEntry struct {
	start     int64
	end       int64
	composite *Composite
}

// BuildIndex creates an index over a region's composite events.
func BuildIndex(composites []*Composite) *Index {
	idx := &Index{byKey: make(map[string]*Composite, len(composites))}
	if len(composites) == 0 {
		return idx
	}

	idx.intervals = make([]indexEntry, len(composites))
	for i, c := range composites {
		idx.intervals[i] = indexEntry{start: c.Pos, end: c.RefEnd(), composite: c}
		idx.byKey[c.Key()] = c
	}

	sort.Slice(idx.intervals, func(i, j int) bool {
		return idx.intervals[i].start < idx.intervals[j].start
	})

	idx.maxEnd = make([]int64, len(idx.intervals))
	idx.maxEnd[len(idx.intervals)-1] = idx.intervals[len(idx.intervals)-1].end
	for i := len(idx.intervals) - 2; i >= 0; i-- {
		idx.maxEnd[i] = idx.intervals[i].end
		if idx.maxEnd[i+1] > idx.maxEnd[i] {
			idx.maxEnd[i] = idx.maxEnd[i+1]
		}
	}

	return idx
}

// Exact returns the composite with the given key, or nil.
func (idx *Index) Exact(key string) *Composite {
	return idx.byKey[key]
}

// FindRange returns all composites whose reference span overlaps
// [lo, hi], in position order.
func (idx *Index) FindRange(lo, hi int64) []*Composite {
	if len(idx.intervals) == 0 {
		return nil
	}

	var result []*Composite

	// Candidates must have start <= hi; scan down from that boundary,
	// pruning once no remaining interval can reach lo.
	bound := sort.Search(len(idx.intervals), func(i int) bool {
		return idx.intervals[i].start > hi
	})

	for i := bound - 1; i >= 0; i-- {
		if idx.maxEnd[i] < lo {
			break
		}
		if idx.intervals[i].end >= lo {
			result = append(result, idx.intervals[i].composite)
		}
	}

	// Reverse into ascending position order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Len returns the number of indexed composites.
func (idx *Index) Len() int {
	return len(idx.intervals)
}
