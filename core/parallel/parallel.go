// Package parallel runs index ranges across a bounded number of goroutines.
//
// Callers write results into pre-sized slices by index, so the outcome does
// not depend on which worker handles which range.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides [0, items) into contiguous ranges, one per available
// CPU, and calls fn for each range concurrently. It returns when all ranges
// are done.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWorkers(items, runtime.GOMAXPROCS(0), fn)
}

// ParallelizeWorkers is Parallelize with an explicit worker limit.
// workers <= 0 means one worker per available CPU. A panic in fn is
// re-raised on the calling goroutine once every range has finished.
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > items {
		workers = items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked any
	)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// ParallelizeWithThreshold runs fn sequentially when items does not exceed
// threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
