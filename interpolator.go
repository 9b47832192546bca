package bhtsne

import "math"

// defaultInterpolationIntervals is the default number of grid cells per
// axis used when Config.Interpolate is enabled. Coarser grids trade
// accuracy for speed the same way larger theta does, just along a
// different axis.
const defaultInterpolationIntervals = 20

// computeInterpolatedNonEdgeForces approximates the repulsive term by
// evaluating the Barnes-Hut tree only at the corners of a regular grid
// covering the current embedding, then bilinearly interpolating each
// point's force from its surrounding cell. It is restricted to 2D
// embeddings: at higher dimensionality the grid's corner count grows as
// 2^dims and the approach stops paying for itself.
func computeInterpolatedNonEdgeForces(tree *spTree, Y []float64, n int, theta float64, intervals int, negF []float64) float64 {
	const dims = 2
	const nvalues = dims + 1 // dims force components + the Z contribution
	const ncorners = 1 << dims

	mins, step := gridBounds(Y, n, intervals)

	// First pass: every occupied cell is an anchor; an anchor and its
	// 2^dims corners all need their force evaluated at the next pass.
	waypoints := make(map[uint64]int)
	for i := 0; i < n; i++ {
		cell := encodeCell(Y[i*dims:i*dims+dims], mins, step, intervals)
		h := hashCell(cell, intervals)
		if v, ok := waypoints[h]; !ok || v < 0 {
			waypoints[h] = 0
			populateCorners(waypoints, cell, intervals)
		}
	}

	// Second pass: assign every waypoint a slot in collected, evaluating
	// the tree's repulsive force at that grid coordinate, and separately
	// number the anchor cells (the ones discovered with value 0 above).
	anchors := make(map[uint64]int)
	collected := make([]float64, nvalues*len(waypoints))
	hashes := make([]uint64, 0, len(waypoints))
	for h := range waypoints {
		hashes = append(hashes, h)
	}
	for i, h := range hashes {
		if waypoints[h] == 0 {
			anchors[h] = len(anchors)
		}
		waypoints[h] = i

		coord := unhashCoords(h, mins, step, intervals)
		out := collected[nvalues*i : nvalues*i+nvalues]
		out[dims] = tree.ComputeNonEdgeForcesAt(coord, theta, out[:dims])
	}

	// Third pass: for every anchor cell, fit a bilinear surface (one per
	// force component plus Z) from its four corners' evaluated forces.
	blocksize := ncorners * nvalues
	interpolants := make([]float64, blocksize*len(anchors))
	for h, anchorIdx := range anchors {
		cell := unhashIndex(h, intervals)

		corner00 := waypoints[hashCell(cell, intervals)]
		cell[0]++
		corner10 := waypoints[hashCell(cell, intervals)]
		cell[1]++
		corner11 := waypoints[hashCell(cell, intervals)]
		cell[0]--
		corner01 := waypoints[hashCell(cell, intervals)]
		others := [ncorners]int{corner00, corner10, corner01, corner11}

		for d := 0; d < nvalues; d++ {
			var obs [ncorners]float64
			for o, idx := range others {
				obs[o] = collected[nvalues*idx+d]
			}

			slope0 := (obs[1] - obs[0]) / step[0]
			intercept0 := obs[0]
			slope1 := (obs[3] - obs[2]) / step[0]
			intercept1 := obs[2]

			offset := anchorIdx*blocksize + d*ncorners
			interpolants[offset+0] = (slope1 - slope0) / step[1] // slope of the slope
			interpolants[offset+1] = slope0                      // intercept of the slope
			interpolants[offset+2] = (intercept1 - intercept0) / step[1]
			interpolants[offset+3] = intercept0
		}
	}

	// Final pass: evaluate the bilinear fit at every point's actual
	// position within its cell.
	sum := 0.0
	for i := 0; i < n; i++ {
		point := Y[i*dims : i*dims+dims]
		cell := encodeCell(point, mins, step, intervals)
		var delta [dims]float64
		for d := 0; d < dims; d++ {
			delta[d] = point[d] - (float64(cell[d])*step[d] + mins[d])
		}

		h := hashCell(cell, intervals)
		anchorIdx := anchors[h]

		var pointSum float64
		for d := 0; d <= dims; d++ {
			offset := anchorIdx*blocksize + d*ncorners
			slope := interpolants[offset]*delta[1] + interpolants[offset+1]
			intercept := interpolants[offset+2]*delta[1] + interpolants[offset+3]
			value := slope*delta[0] + intercept
			if d == dims {
				pointSum = value
			} else {
				negF[i*dims+d] = value
			}
		}
		sum += pointSum
	}

	return sum
}

func gridBounds(Y []float64, n, intervals int) (mins, step [2]float64) {
	mins = [2]float64{math.MaxFloat64, math.MaxFloat64}
	maxs := [2]float64{-math.MaxFloat64, -math.MaxFloat64}
	for i := 0; i < n; i++ {
		for d := 0; d < 2; d++ {
			v := Y[i*2+d]
			if v < mins[d] {
				mins[d] = v
			}
			if v > maxs[d] {
				maxs[d] = v
			}
		}
	}
	for d := 0; d < 2; d++ {
		step[d] = (maxs[d] - mins[d]) / float64(intervals)
		if step[d] == 0 {
			step[d] = 1e-8
		}
	}
	return mins, step
}

func encodeCell(point []float64, mins, step [2]float64, intervals int) [2]int {
	limit := intervals - 1
	var cell [2]int
	for d := 0; d < 2; d++ {
		v := int((point[d] - mins[d]) / step[d])
		if v > limit {
			v = limit
		}
		cell[d] = v
	}
	return cell
}

func hashCell(cell [2]int, intervals int) uint64 {
	stride := uint64(intervals + 1)
	return uint64(cell[0])*stride + uint64(cell[1])
}

func unhashIndex(h uint64, intervals int) [2]int {
	stride := uint64(intervals + 1)
	return [2]int{int(h / stride), int(h % stride)}
}

func unhashCoords(h uint64, mins, step [2]float64, intervals int) []float64 {
	cell := unhashIndex(h, intervals)
	return []float64{
		float64(cell[0])*step[0] + mins[0],
		float64(cell[1])*step[1] + mins[1],
	}
}

// populateCorners ensures all four corners of the cell anchored at current
// have an entry in waypoints, using -1 as the "not itself an anchor"
// sentinel so the caller's anchor-discovery check (value == 0) is never
// accidentally satisfied by a corner that is only along for interpolation.
func populateCorners(waypoints map[uint64]int, current [2]int, intervals int) {
	for dx := 0; dx <= 1; dx++ {
		for dy := 0; dy <= 1; dy++ {
			cell := [2]int{current[0] + dx, current[1] + dy}
			h := hashCell(cell, intervals)
			if _, ok := waypoints[h]; !ok {
				waypoints[h] = -1
			}
		}
	}
}
