package bhtsne

// NodeData describes a single node in a spatial index used for nearest
// neighbor search.
type NodeData struct {
	IdxStart, IdxEnd int
	IsLeaf           bool
	Radius           float64 // ball tree radius; 0 for KD-tree
}

// NeighborSearcher is the read interface backing the internal KD-tree and
// ball-tree implementations used by InitializeFromPoints to build a
// NeighborInput when the caller has no neighbor search of their own.
type NeighborSearcher interface {
	// QueryKNN finds the k nearest neighbors for each row in queryData.
	// queryData is flat row-major with queryRows rows. Returns per-query
	// neighbor indices and distances, both sorted by ascending distance.
	QueryKNN(queryData []float64, queryRows, k int) (indices [][]int, distances [][]float64)

	// QuerySelfExcludingKNN finds, for every point the tree was built from,
	// its k nearest neighbors among the other points indexed by the tree.
	// Unlike QueryKNN against the tree's own data, a point's own index is
	// excluded during traversal rather than queried for and trimmed
	// afterward, so the neighbor graph never has to special-case a k+1 query.
	QuerySelfExcludingKNN(k int) (indices [][]int, distances [][]float64)

	// Data returns the flat row-major point data owned by the tree.
	Data() []float64

	// NumPoints returns the number of points in the tree.
	NumPoints() int

	// NumFeatures returns the dimensionality of each point.
	NumFeatures() int

	// IdxArray returns the permutation array mapping tree-order positions
	// back to original point indices.
	IdxArray() []int

	// NodeDataArray returns the metadata for every node in the tree.
	NodeDataArray() []NodeData
}

// SpatialTree is an alias for NeighborSearcher, matching the interface name
// used elsewhere in the design docs and tests.
type SpatialTree = NeighborSearcher
