package bhtsne

import (
	"math"
	"testing"
)

func TestNeighborInput_Validate_RejectsKGreaterThanN(t *testing.T) {
	in := &NeighborInput{N: 5, K: 10, Indices: make([][]int, 5), Distances: make([][]float64, 5)}
	err := in.validate()
	if err == nil {
		t.Fatal("expected error for K >= N")
	}
	var typed *Error
	if !asError(err, &typed) || typed.Kind != InvalidInput {
		t.Errorf("expected InvalidInput error, got %v", err)
	}
}

func TestNeighborInput_Validate_RejectsMismatchedRowLength(t *testing.T) {
	in := &NeighborInput{
		N: 2, K: 1,
		Indices:   [][]int{{1}, {0, 1}},
		Distances: [][]float64{{1}, {1}},
	}
	if err := in.validate(); err == nil {
		t.Fatal("expected error for mismatched row length")
	}
}

func TestNeighborInput_Validate_RejectsNonFiniteDistance(t *testing.T) {
	in := &NeighborInput{
		N: 2, K: 1,
		Indices:   [][]int{{1}, {0}},
		Distances: [][]float64{{math.NaN()}, {1}},
	}
	if err := in.validate(); err == nil {
		t.Fatal("expected error for non-finite distance")
	}
}

func TestNeighborInput_Validate_AcceptsWellFormedInput(t *testing.T) {
	in := &NeighborInput{
		N: 3, K: 1,
		Indices:   [][]int{{1}, {0}, {0}},
		Distances: [][]float64{{1}, {1}, {2}},
	}
	if err := in.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindNeighbors_ExcludesSelfMatch(t *testing.T) {
	data := []float64{
		0, 0,
		1, 0,
		2, 0,
		10, 10,
	}
	n, dims, k := 4, 2, 2
	searcher := NewKDTree(data, n, dims, EuclideanMetric{}, 1)

	in := findNeighbors(n, k, searcher)
	for i := 0; i < n; i++ {
		if len(in.Indices[i]) != k {
			t.Fatalf("row %d: got %d neighbors, want %d", i, len(in.Indices[i]), k)
		}
		for _, idx := range in.Indices[i] {
			if idx == i {
				t.Errorf("row %d: self-match %d was not excluded", i, i)
			}
		}
	}

	// Point 1 is point 0's unique nearest neighbor.
	if in.Indices[0][0] != 1 {
		t.Errorf("point 0's nearest neighbor = %d, want 1", in.Indices[0][0])
	}
}

func TestBuildNeighborSearcher_SelectsBackendByDims(t *testing.T) {
	data := []float64{0, 0, 1, 1, 2, 2}
	searcher, err := buildNeighborSearcher(data, 3, 2, BackendAuto, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := searcher.(*KDTree); !ok {
		t.Errorf("expected *KDTree for low-dim auto selection, got %T", searcher)
	}
}

// asError is a small helper so tests can check *Error.Kind without importing
// the standard errors package purely for a single As call.
func asError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
