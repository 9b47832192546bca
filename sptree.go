package bhtsne

import "math"

// spNode is one node of a space-partitioning tree stored in an arena: nodes
// reference each other by index into spTree.nodes, never by pointer, so the
// whole tree lives in one growable slice and rebuilding it per iteration
// reuses that slice's backing array instead of allocating a new node graph.
//
// Node 0 is always the root. A zero entry in children means "no child
// there yet"; since the root can never be its own child, 0 is a safe
// sentinel for "empty".
type spNode struct {
	midpoint     []float64
	halfwidth    []float64
	centerOfMass []float64
	children     []int
	isLeaf       bool
	number       int // points represented by this node's subtree
	pointIdx     int // valid only when isLeaf && number == 1: the one point stored here
}

// spTree is a 2^d-tree (a quadtree at d=2, an octree at d=3, and so on)
// used to approximate the repulsive term of the t-SNE gradient via the
// Barnes-Hut multipole expansion.
type spTree struct {
	dims     int
	maxDepth int
	nodes    []spNode
	locations []int
	data     []float64
	n        int
}

func newSPTree(dims, maxDepth int) *spTree {
	return &spTree{dims: dims, maxDepth: maxDepth}
}

func (t *spTree) newNode(parent, octant int) spNode {
	midpoint := make([]float64, t.dims)
	halfwidth := make([]float64, t.dims)
	if parent < 0 {
		// Root: filled in by Set from the data's bounding box.
	} else {
		p := &t.nodes[parent]
		for d := 0; d < t.dims; d++ {
			halfwidth[d] = p.halfwidth[d] / 2
			if (octant>>d)&1 == 1 {
				midpoint[d] = p.midpoint[d] + halfwidth[d]
			} else {
				midpoint[d] = p.midpoint[d] - halfwidth[d]
			}
		}
	}
	return spNode{
		midpoint:     midpoint,
		halfwidth:    halfwidth,
		centerOfMass: make([]float64, t.dims),
		children:     make([]int, 1<<uint(t.dims)),
		isLeaf:       true,
		pointIdx:     -1,
	}
}

// Set rebuilds the tree from scratch for the current embedding positions Y
// (row-major, n points of t.dims coordinates each). The node arena is
// truncated rather than discarded, so repeated calls across gradient
// iterations reuse its backing storage.
func (t *spTree) Set(Y []float64, n int) {
	t.data = Y
	t.n = n

	if cap(t.locations) >= n {
		t.locations = t.locations[:n]
	} else {
		t.locations = make([]int, n)
	}

	t.nodes = t.nodes[:0]
	root := t.newNode(-1, 0)
	t.computeBoundingBox(Y, n, &root)
	t.nodes = append(t.nodes, root)

	for i := 0; i < n; i++ {
		t.insert(0, i, 0)
	}
}

func (t *spTree) computeBoundingBox(Y []float64, n int, root *spNode) {
	dims := t.dims
	minB := make([]float64, dims)
	maxB := make([]float64, dims)
	copy(minB, Y[:dims])
	copy(maxB, Y[:dims])

	for i := 1; i < n; i++ {
		for d := 0; d < dims; d++ {
			v := Y[i*dims+d]
			if v < minB[d] {
				minB[d] = v
			}
			if v > maxB[d] {
				maxB[d] = v
			}
		}
	}

	const eps = 1e-5
	for d := 0; d < dims; d++ {
		root.midpoint[d] = (minB[d] + maxB[d]) / 2
		root.halfwidth[d] = (maxB[d]-minB[d])/2 + eps
	}
}

func (t *spTree) octant(nodeIdx int, point []float64) int {
	node := &t.nodes[nodeIdx]
	oct := 0
	for d := 0; d < t.dims; d++ {
		if point[d] > node.midpoint[d] {
			oct |= 1 << uint(d)
		}
	}
	return oct
}

func (t *spTree) accumulateCenterOfMass(nodeIdx int, point []float64) {
	node := &t.nodes[nodeIdx]
	num := float64(node.number)
	for d := 0; d < t.dims; d++ {
		node.centerOfMass[d] = (node.centerOfMass[d]*num + point[d]) / (num + 1)
	}
}

func (t *spTree) insert(nodeIdx, pointIdx, depth int) {
	dims := t.dims
	point := t.data[pointIdx*dims : pointIdx*dims+dims]

	if !t.nodes[nodeIdx].isLeaf {
		t.accumulateCenterOfMass(nodeIdx, point)
		t.nodes[nodeIdx].number++

		oct := t.octant(nodeIdx, point)
		childIdx := t.nodes[nodeIdx].children[oct]
		if childIdx == 0 {
			childIdx = len(t.nodes)
			t.nodes = append(t.nodes, t.newNode(nodeIdx, oct))
			t.nodes[nodeIdx].children[oct] = childIdx
		}
		t.insert(childIdx, pointIdx, depth+1)
		return
	}

	if t.nodes[nodeIdx].number == 0 {
		copy(t.nodes[nodeIdx].centerOfMass, point)
		t.nodes[nodeIdx].number = 1
		t.nodes[nodeIdx].pointIdx = pointIdx
		t.locations[pointIdx] = nodeIdx
		return
	}

	samePosition := true
	for d := 0; d < dims; d++ {
		if t.nodes[nodeIdx].centerOfMass[d] != point[d] {
			samePosition = false
			break
		}
	}

	if depth >= t.maxDepth || samePosition {
		t.accumulateCenterOfMass(nodeIdx, point)
		t.nodes[nodeIdx].number++
		t.nodes[nodeIdx].pointIdx = -1
		t.locations[pointIdx] = nodeIdx
		return
	}

	// Split: the leaf is at a depth still under the cap and the new point
	// lands at a different position from the point(s) it holds. Turn it
	// into an internal node and reinsert all of them from scratch.
	members := []int{t.nodes[nodeIdx].pointIdx}
	if members[0] < 0 {
		// A merged leaf no longer records its points: they are the points
		// inserted before pointIdx whose location is this leaf.
		members = members[:0]
		for j := 0; j < pointIdx; j++ {
			if t.locations[j] == nodeIdx {
				members = append(members, j)
			}
		}
	}
	t.nodes[nodeIdx].isLeaf = false
	t.nodes[nodeIdx].pointIdx = -1
	t.nodes[nodeIdx].number = 0
	for d := 0; d < dims; d++ {
		t.nodes[nodeIdx].centerOfMass[d] = 0
	}
	for _, j := range members {
		t.insert(nodeIdx, j, depth)
	}
	t.insert(nodeIdx, pointIdx, depth)
}

// NumNodes reports the number of nodes currently in the arena.
func (t *spTree) NumNodes() int { return len(t.nodes) }

// Locations returns, for each point last passed to Set, the arena index of
// the leaf that stores it.
func (t *spTree) Locations() []int { return t.locations }

// ComputeNonEdgeForces accumulates the Barnes-Hut approximation of the
// repulsive force on point pointIdx into negF (length t.dims, overwritten)
// and returns that point's contribution to the normalization sum Z used by
// the gradient engine. theta == 0 disables the multipole approximation
// entirely, forcing the traversal down to every leaf; the result is exact
// as long as no leaf holds points at different positions (a leaf merged at
// maxDepth is still summarized by its center of mass).
func (t *spTree) ComputeNonEdgeForces(pointIdx int, theta float64, negF []float64) float64 {
	for i := range negF {
		negF[i] = 0
	}
	point := t.data[pointIdx*t.dims : pointIdx*t.dims+t.dims]
	return t.nonEdgeForces(0, point, pointIdx, theta, negF)
}

// ComputeNonEdgeForcesAt evaluates the same Barnes-Hut approximation at an
// arbitrary coordinate rather than at one of the tree's own points, as
// needed by the grid interpolator. No point is excluded from the result.
func (t *spTree) ComputeNonEdgeForcesAt(point []float64, theta float64, negF []float64) float64 {
	for i := range negF {
		negF[i] = 0
	}
	return t.nonEdgeForces(0, point, -1, theta, negF)
}

func (t *spTree) nonEdgeForces(nodeIdx int, point []float64, excludeIdx int, theta float64, negF []float64) float64 {
	node := &t.nodes[nodeIdx]
	if node.number == 0 {
		return 0
	}

	// A leaf holding excludeIdx's own location still needs to be visited
	// when it holds other points too; only its contributed mass is reduced
	// by one. pointIdx alone can't detect this once insert merges multiple
	// points into a leaf and resets pointIdx to -1, so this checks the
	// leaf location directly.
	isSelfLeaf := excludeIdx >= 0 && nodeIdx == t.locations[excludeIdx]
	if isSelfLeaf && node.number == 1 {
		return 0
	}

	dims := t.dims

	sqdist := 0.0
	for d := 0; d < dims; d++ {
		diff := point[d] - node.centerOfMass[d]
		sqdist += diff * diff
	}

	maxWidth := 0.0
	for d := 0; d < dims; d++ {
		if w := 2 * node.halfwidth[d]; w > maxWidth {
			maxWidth = w
		}
	}

	// The root (node 0) is never used as a summary, only descended into.
	if node.isLeaf || (nodeIdx != 0 && maxWidth/math.Sqrt(sqdist) < theta) {
		number := float64(node.number)
		if isSelfLeaf {
			number--
		}
		if number <= 0 {
			return 0
		}
		q := 1.0 / (1.0 + sqdist)
		mult := number * q
		sum := mult
		mult *= q
		for d := 0; d < dims; d++ {
			negF[d] += mult * (point[d] - node.centerOfMass[d])
		}
		return sum
	}

	sum := 0.0
	for _, childIdx := range node.children {
		if childIdx == 0 {
			continue
		}
		sum += t.nonEdgeForces(childIdx, point, excludeIdx, theta, negF)
	}
	return sum
}
