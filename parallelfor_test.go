package bhtsne

import (
	"math"
	"testing"
)

func TestComputePairwiseDistancesParallel_BitwiseIdentical(t *testing.T) {
	data := []float64{
		0, 0,
		3, 0,
		0, 4,
		1, 1,
		5, 5,
	}
	n, dims := 5, 2
	metric := EuclideanMetric{}

	sequential := ComputePairwiseDistances(data, n, dims, metric)

	for _, workers := range []int{1, 2, 4} {
		pf := ParallelFor{Mode: ParallelBuiltin, Workers: workers}
		parallel := ComputePairwiseDistancesParallel(data, n, dims, metric, pf)

		if len(parallel) != len(sequential) {
			t.Fatalf("workers=%d: length mismatch %d != %d", workers, len(parallel), len(sequential))
		}
		for i := range sequential {
			if parallel[i] != sequential[i] {
				t.Errorf("workers=%d: result[%d] = %v, expected %v (bitwise)",
					workers, i, parallel[i], sequential[i])
			}
		}
	}
}

func TestComputePairwiseDistancesParallel_SequentialMode(t *testing.T) {
	data := []float64{0, 0, 3, 4, 6, 0}
	n, dims := 3, 2

	sequential := ComputePairwiseDistances(data, n, dims, EuclideanMetric{})
	parallel := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, defaultParallelFor())

	for i := range sequential {
		if parallel[i] != sequential[i] {
			t.Errorf("sequential mode: result[%d] = %v, expected %v", i, parallel[i], sequential[i])
		}
	}
}

func TestComputePairwiseDistancesParallel_CustomMode(t *testing.T) {
	data := []float64{0, 0, 3, 4, 6, 0, 1, 1}
	n, dims := 4, 2

	var callCount int
	pf := ParallelFor{
		Mode: ParallelCustom,
		Func: func(items int, body func(start, end int)) {
			callCount++
			half := items / 2
			body(0, half)
			body(half, items)
		},
	}

	sequential := ComputePairwiseDistances(data, n, dims, EuclideanMetric{})
	parallel := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, pf)

	if callCount != 1 {
		t.Errorf("expected Func to be invoked once, got %d", callCount)
	}
	for i := range sequential {
		if parallel[i] != sequential[i] {
			t.Errorf("custom mode: result[%d] = %v, expected %v", i, parallel[i], sequential[i])
		}
	}
}

func TestComputePairwiseDistancesParallel_MoreWorkersThanRows(t *testing.T) {
	data := []float64{0, 0, 3, 4, 6, 0}
	n, dims := 3, 2

	sequential := ComputePairwiseDistances(data, n, dims, EuclideanMetric{})
	pf := ParallelFor{Mode: ParallelBuiltin, Workers: 10}
	parallel := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, pf)

	for i := range sequential {
		if parallel[i] != sequential[i] {
			t.Errorf("parallel[%d] = %v, expected %v", i, parallel[i], sequential[i])
		}
	}
}

func TestComputePairwiseDistancesParallel_LargerDataset(t *testing.T) {
	// Generate a 20-point dataset to exercise multiple workers with real load.
	n, dims := 20, 3
	data := make([]float64, n*dims)
	for i := range data {
		data[i] = math.Sin(float64(i) * 0.7)
	}

	sequential := ComputePairwiseDistances(data, n, dims, EuclideanMetric{})

	for _, workers := range []int{2, 4, 7} {
		pf := ParallelFor{Mode: ParallelBuiltin, Workers: workers}
		parallel := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, pf)

		for i := range sequential {
			if parallel[i] != sequential[i] {
				t.Errorf("workers=%d: parallel[%d] = %v, expected %v",
					workers, i, parallel[i], sequential[i])
			}
		}
	}
}

func TestParallelFor_Run_EmptyRange(t *testing.T) {
	calls := 0
	pf := ParallelFor{Mode: ParallelBuiltin, Workers: 4}
	pf.Run(0, func(start, end int) { calls++ })
	if calls != 0 {
		t.Errorf("expected 0 calls for n=0, got %d", calls)
	}
}
