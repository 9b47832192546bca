package bhtsne

import "sync"

// ParallelMode selects which parallel-for implementation a ParallelFor uses.
type ParallelMode int

const (
	// ParallelSequential runs the body once over the full range [0, n).
	ParallelSequential ParallelMode = iota
	// ParallelBuiltin splits [0, n) into contiguous per-worker ranges and
	// runs them on Workers goroutines.
	ParallelBuiltin
	// ParallelCustom delegates entirely to a caller-supplied Func, so the
	// library can be embedded inside a larger parallel framework.
	ParallelCustom
)

// ParallelFor is an injectable data-parallel-for primitive. Per-row
// perplexity calibration and the direct Barnes-Hut repulsive-force pass go
// through a ParallelFor instead of spawning goroutines directly; attractive
// forces, interpolator waypoint evaluation and KNN queries run sequentially.
type ParallelFor struct {
	Mode    ParallelMode
	Workers int // used only in ParallelBuiltin mode; <= 1 behaves sequentially

	// Func is used only in ParallelCustom mode. It receives the item count
	// and must call body once per disjoint sub-range covering [0, n),
	// same contract as the built-in implementation.
	Func func(n int, body func(start, end int))
}

// defaultParallelFor returns the sequential ParallelFor, matching the
// teacher's existing sequential-by-default fallback behavior.
func defaultParallelFor() ParallelFor {
	return ParallelFor{Mode: ParallelSequential}
}

// Run invokes body over one or more disjoint sub-ranges covering [0, n).
// body must write only to indices within [start, end) of any shared
// output buffer, since ParallelBuiltin and ParallelCustom may invoke body
// concurrently from multiple goroutines.
func (p ParallelFor) Run(n int, body func(start, end int)) {
	if n <= 0 {
		return
	}
	switch p.Mode {
	case ParallelCustom:
		if p.Func == nil {
			body(0, n)
			return
		}
		p.Func(n, body)
	case ParallelBuiltin:
		runBuiltinParallelFor(n, p.Workers, body)
	default:
		body(0, n)
	}
}

// runBuiltinParallelFor splits [0, n) into contiguous ranges, one per
// worker, and runs them on separate goroutines with disjoint writes.
func runBuiltinParallelFor(n, numWorkers int, body func(start, end int)) {
	if numWorkers <= 1 || n <= 1 {
		body(0, n)
		return
	}

	var wg sync.WaitGroup
	rowsPerWorker := (n + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if endRow > n {
			endRow = n
		}
		if startRow >= n {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			body(start, end)
		}(startRow, endRow)
	}

	wg.Wait()
}

// ComputePairwiseDistancesParallel computes the full n×n distance matrix
// using the given ParallelFor. data is flat row-major with n rows and
// dims columns. Bitwise identical to ComputePairwiseDistances regardless
// of worker count, since each pair (i, j) with i < j is computed and
// written, to both mirrored cells, only by the worker owning row i.
func ComputePairwiseDistancesParallel(data []float64, n, dims int, metric DistanceMetric, pf ParallelFor) []float64 {
	result := make([]float64, n*n)

	pf.Run(n, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i + 1; j < n; j++ {
				d := metric.Distance(data[i*dims:(i+1)*dims], data[j*dims:(j+1)*dims])
				result[i*n+j] = d
				result[j*n+i] = d
			}
		}
	})

	return result
}
