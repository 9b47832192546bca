package bhtsne

import "math"

// NeighborInput holds, for each of N observations, the indices and
// distances of its K nearest neighbors, sorted by ascending distance.
// Indices[n] and Distances[n] each have length K.
type NeighborInput struct {
	N, K       int
	Indices    [][]int
	Distances  [][]float64
}

// validate checks the structural invariants NeighborInput must satisfy
// before the affinity builder can consume it.
func (in *NeighborInput) validate() error {
	if in.K >= in.N {
		return newError(InvalidInput, "K (%d) must be less than N (%d)", in.K, in.N)
	}
	if len(in.Indices) != in.N || len(in.Distances) != in.N {
		return newError(InvalidInput, "Indices/Distances must have length N (%d)", in.N)
	}
	for i := 0; i < in.N; i++ {
		if len(in.Indices[i]) != in.K || len(in.Distances[i]) != in.K {
			return newError(InvalidInput, "row %d: expected %d neighbors, got indices=%d distances=%d", i, in.K, len(in.Indices[i]), len(in.Distances[i]))
		}
		for _, d := range in.Distances[i] {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return newError(InvalidInput, "row %d: non-finite distance %v", i, d)
			}
		}
	}
	return nil
}

// buildNeighborSearcher constructs the internal KD-tree or ball-tree
// backend selected by selectBackend, used only by InitializeFromPoints.
func buildNeighborSearcher(points []float64, n, dims int, backend NeighborBackend, leafSize int) (NeighborSearcher, error) {
	resolved, err := selectBackend(backend, EuclideanMetric{}, dims)
	if err != nil {
		return nil, err
	}
	switch resolved {
	case BackendKDTree:
		return NewKDTree(points, n, dims, EuclideanMetric{}, leafSize), nil
	default:
		return NewBallTree(points, n, dims, EuclideanMetric{}, leafSize), nil
	}
}

// findNeighbors runs the given searcher's self-excluding KNN query, which
// builds every row of the neighbor graph over a point's neighbors without
// ever considering the point itself.
func findNeighbors(n, k int, searcher NeighborSearcher) *NeighborInput {
	idx, dist := searcher.QuerySelfExcludingKNN(k)
	return &NeighborInput{N: n, K: k, Indices: idx, Distances: dist}
}
