package bhtsne

import (
	"math"
	"math/rand"
	"testing"
)

func randomPoints2D(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	Y := make([]float64, n*2)
	for i := range Y {
		Y[i] = rng.NormFloat64()
	}
	return Y
}

// validateNode recursively checks the structural invariants of the SPTree:
// bounded depth, children sitting in the octant implied by their slot,
// and a node's number equal to the sum of its children's numbers.
func validateNode(t *testing.T, tree *spTree, nodeIdx, depth, maxDepth int) int {
	node := &tree.nodes[nodeIdx]
	if depth > maxDepth {
		t.Errorf("node %d exceeds max depth %d (depth=%d)", nodeIdx, maxDepth, depth)
	}

	if node.isLeaf {
		return node.number
	}

	childTotal := 0
	for oct, childIdx := range node.children {
		if childIdx == 0 {
			continue
		}
		child := &tree.nodes[childIdx]
		for d := 0; d < tree.dims; d++ {
			if (oct>>d)&1 == 1 {
				if !(child.midpoint[d] > node.midpoint[d]) {
					t.Errorf("child %d dim %d: expected midpoint > parent's", childIdx, d)
				}
			} else {
				if !(child.midpoint[d] < node.midpoint[d]) {
					t.Errorf("child %d dim %d: expected midpoint < parent's", childIdx, d)
				}
			}
		}
		childTotal += validateNode(t, tree, childIdx, depth+1, maxDepth)
	}

	if childTotal != node.number {
		t.Errorf("node %d: number=%d but children sum to %d", nodeIdx, node.number, childTotal)
	}
	return node.number
}

func TestSPTree_StructuralInvariants(t *testing.T) {
	for _, n := range []int{10, 100, 500} {
		maxDepth := 20
		Y := randomPoints2D(n, int64(n))
		tree := newSPTree(2, maxDepth)
		tree.Set(Y, n)

		total := validateNode(t, tree, 0, 0, maxDepth)
		if total != n {
			t.Errorf("n=%d: root number=%d, want %d", n, total, n)
		}

		locations := tree.Locations()
		if len(locations) != n {
			t.Fatalf("n=%d: len(locations)=%d, want %d", n, len(locations), n)
		}
		for _, loc := range locations {
			if !tree.nodes[loc].isLeaf {
				t.Errorf("n=%d: location %d is not a leaf", n, loc)
			}
		}
	}
}

// bruteForceNonEdgeForces mirrors the naive O(N^2) reference computation
// used to validate the Barnes-Hut approximation at theta=0.
func bruteForceNonEdgeForces(point []float64, Y []float64, n, dims int) (float64, []float64) {
	negF := make([]float64, dims)
	var sum float64
	for i := 0; i < n; i++ {
		other := Y[i*dims : i*dims+dims]
		same := true
		for d := 0; d < dims; d++ {
			if point[d] != other[d] {
				same = false
				break
			}
		}
		if same {
			continue
		}
		sqdist := 0.0
		for d := 0; d < dims; d++ {
			diff := point[d] - other[d]
			sqdist += diff * diff
		}
		q := 1.0 / (1.0 + sqdist)
		sum += q
		mult := q * q
		for d := 0; d < dims; d++ {
			negF[d] += mult * (point[d] - other[d])
		}
	}
	return sum, negF
}

// bruteForceNonEdgeForcesExcludingIndex mirrors bruteForceNonEdgeForces but
// excludes only the literal self index, not every point sharing its
// position, matching what Barnes-Hut self-exclusion means even when several
// points coincide in one merged leaf.
func bruteForceNonEdgeForcesExcludingIndex(Y []float64, n, dims, selfIdx int) (float64, []float64) {
	point := Y[selfIdx*dims : selfIdx*dims+dims]
	negF := make([]float64, dims)
	var sum float64
	for i := 0; i < n; i++ {
		if i == selfIdx {
			continue
		}
		other := Y[i*dims : i*dims+dims]
		sqdist := 0.0
		for d := 0; d < dims; d++ {
			diff := point[d] - other[d]
			sqdist += diff * diff
		}
		q := 1.0 / (1.0 + sqdist)
		sum += q
		mult := q * q
		for d := 0; d < dims; d++ {
			negF[d] += mult * (point[d] - other[d])
		}
	}
	return sum, negF
}

// TestSPTree_MergedLeafExcludesOnlySelfMass exercises the case where a leaf
// holds several points at the same exact position, reachable at a shallow
// maxDepth without waiting for MaxDepth truncation. Every point's own
// contribution must still be excluded, leaving only the other n-1 points
// in both the returned sum and negF.
func TestSPTree_MergedLeafExcludesOnlySelfMass(t *testing.T) {
	dims := 2
	centers := [][2]float64{{0, 0}, {10, 0}, {0, 10}, {10, 10}, {5, 5}}
	dupPerCenter := 4

	var Y []float64
	for _, c := range centers {
		for i := 0; i < dupPerCenter; i++ {
			Y = append(Y, c[0], c[1])
		}
	}
	n := len(centers) * dupPerCenter

	tree := newSPTree(dims, 3)
	tree.Set(Y, n)

	sawMergedLeaf := false
	for i := 0; i < n; i++ {
		if tree.nodes[tree.Locations()[i]].number > 1 {
			sawMergedLeaf = true
			break
		}
	}
	if !sawMergedLeaf {
		t.Fatal("expected at least one merged leaf in this fixture")
	}

	for i := 0; i < n; i++ {
		negF := make([]float64, dims)
		sum := tree.ComputeNonEdgeForces(i, 0, negF)

		refSum, refNegF := bruteForceNonEdgeForcesExcludingIndex(Y, n, dims, i)

		if !almostEqual(sum, refSum, 1e-9*math.Max(1, math.Abs(refSum))) {
			t.Errorf("point %d: sum=%v, want %v", i, sum, refSum)
		}
		for d := 0; d < dims; d++ {
			if !almostEqual(negF[d], refNegF[d], 1e-9*math.Max(1, math.Abs(refNegF[d]))) {
				t.Errorf("point %d dim %d: negF=%v, want %v", i, d, negF[d], refNegF[d])
			}
		}
	}
}

func TestSPTree_ExactThetaMatchesBruteForce(t *testing.T) {
	n, dims := 100, 2
	Y := randomPoints2D(n, 42)

	tree := newSPTree(dims, 20)
	tree.Set(Y, n)

	for q := 0; q < 20; q++ {
		i := q * (n / 20)
		negF := make([]float64, dims)
		sum := tree.ComputeNonEdgeForces(i, 0, negF)

		refSum, refNegF := bruteForceNonEdgeForces(Y[i*dims:i*dims+dims], Y, n, dims)

		if !almostEqual(sum, refSum, 1e-6*math.Max(1, math.Abs(refSum))) {
			t.Errorf("point %d: sum=%v, want %v", i, sum, refSum)
		}
		for d := 0; d < dims; d++ {
			if !almostEqual(negF[d], refNegF[d], 1e-6*math.Max(1, math.Abs(refNegF[d]))) {
				t.Errorf("point %d dim %d: negF=%v, want %v", i, d, negF[d], refNegF[d])
			}
		}
	}
}

func TestSPTree_EveryLeafPointCoversAllPoints(t *testing.T) {
	n := 50
	Y := randomPoints2D(n, 7)
	tree := newSPTree(2, 20)
	tree.Set(Y, n)

	for i := 0; i < n; i++ {
		loc := tree.Locations()[i]
		if !tree.nodes[loc].isLeaf {
			t.Fatalf("point %d's location %d is not a leaf", i, loc)
		}
	}
}

func TestSPTree_RebuildReusesArena(t *testing.T) {
	n := 30
	tree := newSPTree(2, 10)

	Y1 := randomPoints2D(n, 1)
	tree.Set(Y1, n)
	firstCap := cap(tree.nodes)
	firstBase := &tree.nodes[0]

	Y2 := randomPoints2D(n, 2)
	tree.Set(Y2, n)

	if cap(tree.nodes) > firstCap {
		// Growth is allowed if the second layout needed more nodes, but
		// a same-size rebuild should not need to grow past the first
		// allocation in the common case.
		t.Logf("arena grew from cap %d to %d across rebuilds", firstCap, cap(tree.nodes))
	}
	if cap(tree.nodes) == firstCap && &tree.nodes[0] != firstBase {
		t.Error("rebuild without growth did not reuse the arena's backing array")
	}
	if tree.NumNodes() == 0 {
		t.Error("expected a non-empty tree after Set")
	}
}

func TestSPTree_DuplicatePointsDoNotInfiniteLoop(t *testing.T) {
	n := 10
	Y := make([]float64, n*2)
	for i := 0; i < n; i++ {
		Y[i*2] = 1.0
		Y[i*2+1] = 1.0
	}
	tree := newSPTree(2, 10)
	tree.Set(Y, n)

	if tree.nodes[0].number != n {
		t.Errorf("root number=%d, want %d", tree.nodes[0].number, n)
	}
}

func TestSPTree_SinglePoint(t *testing.T) {
	Y := []float64{3, 4}
	tree := newSPTree(2, 10)
	tree.Set(Y, 1)

	negF := make([]float64, 2)
	sum := tree.ComputeNonEdgeForces(0, 0, negF)
	if sum != 0 {
		t.Errorf("single point sum=%v, want 0", sum)
	}
}
