package bhtsne

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// PerplexitySearchMode selects the root-finding strategy used to calibrate
// each row's Gaussian kernel bandwidth (beta) to the target perplexity.
type PerplexitySearchMode int

const (
	// PerplexitySearchAdaptive attempts a Newton-Raphson step each
	// iteration, falling back to bisection when the step would leave the
	// current [min_beta, max_beta] bracket.
	PerplexitySearchAdaptive PerplexitySearchMode = iota
	// PerplexitySearchBisectionOnly never attempts the Newton step,
	// useful for deterministic testing against a simpler code path.
	PerplexitySearchBisectionOnly
)

const (
	perplexityTol     = 1e-5
	perplexityMaxIter = 200
)

// affinityResult is the sparse symmetric probability matrix produced by
// buildAffinities, stored as a per-row (index, value) list sorted by
// ascending neighbor index.
type affinityResult struct {
	neighbors     [][]int
	probabilities [][]float64
	warnings      []RowWarning
}

// buildAffinities runs per-row Gaussian perplexity calibration followed by
// symmetrization, mirroring compute_gaussian_perplexity/symmetrize_matrix.
func buildAffinities(in *NeighborInput, mode PerplexitySearchMode, pf ParallelFor) *affinityResult {
	n, k := in.N, in.K
	logPerplexity := math.Log(float64(k) / 3.0)

	probabilities := make([][]float64, n)
	warnings := make([]*RowWarning, n)

	pf.Run(n, func(start, end int) {
		squaredDelta := make([]float64, k)
		quadDelta := make([]float64, k)

		for row := start; row < end; row++ {
			dist := in.Distances[row]
			output := make([]float64, k)
			output[0] = 1

			first := dist[0] * dist[0]
			for m := 1; m < k; m++ {
				squaredDelta[m] = dist[m]*dist[m] - first
				quadDelta[m] = squaredDelta[m] * squaredDelta[m]
			}

			beta := 1.0
			minBeta, maxBeta := 0.0, math.MaxFloat64
			sumP := 0.0
			var lastDiff, lastBeta float64
			converged := false

			for iter := 0; iter < perplexityMaxIter; iter++ {
				for m := 1; m < k; m++ {
					output[m] = math.Exp(-beta * squaredDelta[m])
				}

				sumP = 1.0
				for m := 1; m < k; m++ {
					sumP += output[m]
				}
				prod := 0.0
				for m := 1; m < k; m++ {
					prod += squaredDelta[m] * output[m]
				}
				entropy := beta*(prod/sumP) + math.Log(sumP)

				diff := entropy - logPerplexity
				lastDiff = diff
				lastBeta = beta
				if math.Abs(diff) < perplexityTol {
					converged = true
					break
				}

				nrOK := false
				if mode == PerplexitySearchAdaptive {
					prod2 := 0.0
					for m := 1; m < k; m++ {
						prod2 += quadDelta[m] * output[m]
					}
					d1 := -beta / sumP * (prod2 - prod*prod/sumP)
					if d1 != 0 {
						altBeta := beta - diff/d1
						if altBeta > minBeta && altBeta < maxBeta {
							beta = altBeta
							nrOK = true
						}
					}
				}

				if !nrOK {
					if diff > 0 {
						minBeta = beta
						if maxBeta == math.MaxFloat64 {
							beta *= 2.0
						} else {
							beta = (beta + maxBeta) / 2.0
						}
					} else {
						maxBeta = beta
						beta = (beta + minBeta) / 2.0
					}
				}
			}

			for m := 0; m < k; m++ {
				output[m] /= sumP
			}
			probabilities[row] = output

			if !converged {
				warnings[row] = &RowWarning{Row: row, LastBeta: lastBeta, LastDelta: math.Abs(lastDiff)}
			}
		}
	})

	var rowWarnings []RowWarning
	for _, w := range warnings {
		if w != nil {
			rowWarnings = append(rowWarnings, *w)
		}
	}

	neighbors, symProbabilities := symmetrize(in, probabilities)

	return &affinityResult{
		neighbors:     neighbors,
		probabilities: symProbabilities,
		warnings:      rowWarnings,
	}
}

// symmetrize merges each (n, j) edge with its reverse: for every (n, j)
// edge, it looks up n in row j with a linear scan over row j's original K
// neighbors (no sortedness of the rows is assumed) and merges probabilities
// in place, or appends a new entry when absent.
func symmetrize(in *NeighborInput, probabilities [][]float64) ([][]int, [][]float64) {
	n, k := in.N, in.K

	// Total probability before symmetrization; every edge is counted twice
	// after merging, so dividing by twice this total makes P sum to 1.
	total := 0.0
	for _, row := range probabilities {
		total += floats.Sum(row)
	}

	neighbors := make([][]int, n)
	for row := 0; row < n; row++ {
		neighbors[row] = append([]int(nil), in.Indices[row]...)
	}

	for row := 0; row < n; row++ {
		myNeighbors := in.Indices[row]
		for k1 := 0; k1 < k; k1++ {
			curNeighbor := myNeighbors[k1]
			theirNeighbors := in.Indices[curNeighbor]

			present := false
			for k2 := 0; k2 < len(theirNeighbors); k2++ {
				if theirNeighbors[k2] == row {
					if row < curNeighbor {
						sum := probabilities[row][k1] + probabilities[curNeighbor][k2]
						probabilities[row][k1] = sum
						probabilities[curNeighbor][k2] = sum
					}
					present = true
					break
				}
			}

			if !present {
				neighbors[curNeighbor] = append(neighbors[curNeighbor], row)
				probabilities[curNeighbor] = append(probabilities[curNeighbor], probabilities[row][k1])
			}
		}
	}

	for i, row := range probabilities {
		for j := range row {
			probabilities[i][j] /= 2 * total
		}
	}

	// Re-sort each row by neighbor index: appended entries break ordering.
	for row := 0; row < n; row++ {
		idx := make([]int, len(neighbors[row]))
		for i := range idx {
			idx[i] = i
		}
		nb := neighbors[row]
		pr := probabilities[row]
		sort.Slice(idx, func(a, b int) bool { return nb[idx[a]] < nb[idx[b]] })

		sortedNb := make([]int, len(nb))
		sortedPr := make([]float64, len(pr))
		for i, srcIdx := range idx {
			sortedNb[i] = nb[srcIdx]
			sortedPr[i] = pr[srcIdx]
		}
		neighbors[row] = sortedNb
		probabilities[row] = sortedPr
	}

	return neighbors, probabilities
}
