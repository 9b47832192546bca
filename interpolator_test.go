package bhtsne

import (
	"math"
	"testing"
)

func TestComputeInterpolatedNonEdgeForces_ApproximatesExactTree(t *testing.T) {
	n := 80
	Y := randomPoints2D(n, 11)

	tree := newSPTree(2, 20)
	tree.Set(Y, n)

	exact := make([]float64, n*2)
	exactSum := computeNonEdgeForces(tree, n, 2, 0, exact, defaultParallelFor())

	approx := make([]float64, n*2)
	approxSum := computeInterpolatedNonEdgeForces(tree, Y, n, 0, 40, approx)

	if !almostEqual(exactSum, approxSum, 0.2*math.Abs(exactSum)) {
		t.Errorf("interpolated sum=%v, want roughly close to exact sum=%v", approxSum, exactSum)
	}

	var maxDiff float64
	for i := range exact {
		d := math.Abs(exact[i] - approx[i])
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > 1.0 {
		t.Errorf("max per-coordinate force difference = %v, unexpectedly large for a fine grid", maxDiff)
	}
}

func TestEncodeCell_ClampsAtUpperBound(t *testing.T) {
	mins := [2]float64{0, 0}
	step := [2]float64{1, 1}
	cell := encodeCell([]float64{9, 9}, mins, step, 5)
	if cell[0] != 4 || cell[1] != 4 {
		t.Errorf("cell = %v, want clamped to [4,4]", cell)
	}
}

func TestHashUnhash_RoundTrips(t *testing.T) {
	intervals := 10
	cell := [2]int{3, 7}
	h := hashCell(cell, intervals)
	got := unhashIndex(h, intervals)
	if got != cell {
		t.Errorf("round trip got %v, want %v", got, cell)
	}
}

func TestPopulateCorners_AddsAllFourCorners(t *testing.T) {
	waypoints := make(map[uint64]int)
	populateCorners(waypoints, [2]int{2, 2}, 10)

	want := []uint64{
		hashCell([2]int{2, 2}, 10),
		hashCell([2]int{3, 2}, 10),
		hashCell([2]int{2, 3}, 10),
		hashCell([2]int{3, 3}, 10),
	}
	for _, h := range want {
		if _, ok := waypoints[h]; !ok {
			t.Errorf("missing corner hash %d", h)
		}
	}
	if len(waypoints) != 4 {
		t.Errorf("len(waypoints) = %d, want 4", len(waypoints))
	}
}
