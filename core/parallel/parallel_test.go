package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelizeWorkersCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"more items than workers", 103, 4},
		{"more workers than items", 3, 16},
		{"single worker", 10, 1},
		{"default workers", 57, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.items)
			ParallelizeWorkers(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d visited %d times", i, h)
				}
			}
		})
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	ParallelizeWithThreshold(0, 10, func(start, end int) { called = true })
	if called {
		t.Error("fn must not be called for zero items")
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 5 {
			t.Errorf("expected single range [0,5), got [%d,%d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestParallelizeWorkersPanicReachesCaller(t *testing.T) {
	var done int32
	defer func() {
		r := recover()
		if r != "bad range" {
			t.Fatalf("recovered %v, want the worker's panic", r)
		}
		if n := atomic.LoadInt32(&done); n != 3 {
			t.Errorf("%d healthy ranges finished, want 3", n)
		}
	}()
	ParallelizeWorkers(4, 4, func(start, end int) {
		if start == 2 {
			panic("bad range")
		}
		atomic.AddInt32(&done, 1)
	})
	t.Fatal("ParallelizeWorkers returned normally")
}
