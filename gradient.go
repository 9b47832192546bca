package bhtsne

import "gonum.org/v1/gonum/floats"

// computeEdgeForces accumulates the attractive term of the gradient: for
// every sparse edge (n, neighbor) in P, it pulls n toward neighbor with a
// force proportional to the edge probability, scaled by the current
// exaggeration multiplier. posF is row-major N*dims and is overwritten.
func computeEdgeForces(neighbors [][]int, probabilities [][]float64, Y []float64, dims int, multiplier float64, posF []float64) {
	for i := range posF {
		posF[i] = 0
	}

	for n, row := range neighbors {
		self := Y[n*dims : n*dims+dims]
		for k, neighbor := range row {
			other := Y[neighbor*dims : neighbor*dims+dims]

			sqdist := 0.0
			for d := 0; d < dims; d++ {
				diff := self[d] - other[d]
				sqdist += diff * diff
			}

			mult := multiplier * probabilities[n][k] / (1 + sqdist)
			for d := 0; d < dims; d++ {
				posF[n*dims+d] += mult * (self[d] - other[d])
			}
		}
	}
}

// computeNonEdgeForces accumulates the repulsive term via the Barnes-Hut
// tree and returns the normalization constant Z that the repulsive forces
// must be divided by. Each point writes only to its own slot in pointSums
// and its own slice of negF, so the result is identical no matter how pf
// splits the work across goroutines; floats.Sum then reduces in a fixed
// index order for a bit-identical Z across runs.
func computeNonEdgeForces(tree *spTree, n, dims int, theta float64, negF []float64, pf ParallelFor) float64 {
	pointSums := make([]float64, n)

	pf.Run(n, func(start, end int) {
		local := make([]float64, dims)
		for i := start; i < end; i++ {
			pointSums[i] = tree.ComputeNonEdgeForces(i, theta, local)
			copy(negF[i*dims:i*dims+dims], local)
		}
	})

	// Every point's contribution lands in its own slot regardless of which
	// goroutine computed it, so summing pointSums in index order gives the
	// same Z on every run no matter how the work was split.
	return floats.Sum(pointSums)
}

// gradientState holds the per-iteration working buffers the gradient
// engine needs, sized once up front and reused for the lifetime of a Run.
type gradientState struct {
	dY, uY, gains, posF, negF []float64
}

func newGradientState(n, dims int) *gradientState {
	uY := make([]float64, n*dims)
	gains := make([]float64, n*dims)
	for i := range gains {
		gains[i] = 1
	}
	return &gradientState{
		dY:    make([]float64, n*dims),
		uY:    uY,
		gains: gains,
		posF:  make([]float64, n*dims),
		negF:  make([]float64, n*dims),
	}
}

// sign returns -1, 0 or 1. sign(0) is 0, so a zero gradient or velocity
// never counts as a sign flip in the gains update.
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// computeGradient rebuilds the Barnes-Hut tree against the current
// embedding, accumulates attractive and repulsive forces, and writes the
// combined gradient into state.dY.
func computeGradient(status *Status, cfg Config, multiplier float64, pf ParallelFor) {
	dims := status.dims
	n := status.n

	status.tree.Set(status.Y, n)

	computeEdgeForces(status.neighbors, status.probabilities, status.Y, dims, multiplier, status.state.posF)

	var sumQ float64
	if cfg.Interpolate {
		sumQ = computeInterpolatedNonEdgeForces(status.tree, status.Y, n, cfg.Theta, cfg.Intervals, status.state.negF)
	} else {
		sumQ = computeNonEdgeForces(status.tree, n, dims, cfg.Theta, status.state.negF, pf)
	}

	for i := 0; i < n*dims; i++ {
		status.state.dY[i] = status.state.posF[i] - status.state.negF[i]/sumQ
	}
}

// applyGradientStep updates gains, momentum-accumulated velocity, and the
// embedding itself from the gradient currently in status.state.dY, then
// recenters the embedding to zero mean along every dimension.
func applyGradientStep(status *Status, momentum, eta float64) {
	dims := status.dims
	n := status.n
	s := status.state

	for i := 0; i < n*dims; i++ {
		if sign(s.dY[i]) != sign(s.uY[i]) {
			s.gains[i] += 0.2
		} else {
			s.gains[i] *= 0.8
		}
		if s.gains[i] < 0.01 {
			s.gains[i] = 0.01
		}
		s.uY[i] = momentum*s.uY[i] - eta*s.gains[i]*s.dY[i]
		status.Y[i] += s.uY[i]
	}

	recenter(status.Y, n, dims)
}

func recenter(Y []float64, n, dims int) {
	means := make([]float64, dims)
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			means[d] += Y[i*dims+d]
		}
	}
	for d := 0; d < dims; d++ {
		means[d] /= float64(n)
	}
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			Y[i*dims+d] -= means[d]
		}
	}
}
