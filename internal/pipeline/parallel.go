package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/assemble"
)

// WorkItem holds one region queued for processing.
type WorkItem struct {
	Seq    int
	Region align.Region
}

// WorkResult holds one region's records. Err is set when the region
// failed as a whole; other regions are unaffected.
type WorkResult struct {
	Seq     int
	Region  align.Region
	Records []*assemble.Record
	Err     error
}

// ParallelProcess processes work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not
// sequence order). Use OrderedCollect to consume results in
// sequence-number order. If workers is 0, runtime.NumCPU() is used.
func (e *Engine) ParallelProcess(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				records, err := e.ProcessRegion(ctx, item.Region)
				results <- WorkResult{
					Seq:     item.Seq,
					Region:  item.Region,
					Records: records,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Run processes the regions with the configured worker count and passes
// each region's result to fn in input order. Region failures travel in
// WorkResult.Err so fn decides whether to abort; returning an error
// from fn stops the run.
func (e *Engine) Run(ctx context.Context, regions []align.Region, fn func(WorkResult) error) error {
	items := make(chan WorkItem, len(regions))
	for i, region := range regions {
		items <- WorkItem{Seq: i, Region: region}
	}
	close(items)

	return OrderedCollect(e.ParallelProcess(ctx, items, e.cfg.Workers), fn)
}
