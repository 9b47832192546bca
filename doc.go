// Package bhtsne implements Barnes-Hut accelerated t-distributed stochastic
// neighbor embedding (t-SNE).
//
// Given a precomputed list of K nearest neighbors per observation, bhtsne
// produces a low-dimensional embedding (typically d=2) whose local structure
// mirrors the input by minimizing the Kullback-Leibler divergence between the
// input similarity distribution and a Student-t similarity distribution over
// the embedding.
//
// Basic usage, with neighbors already computed by the caller:
//
//	cfg := bhtsne.DefaultConfig()
//	status, warnings, err := bhtsne.Initialize(neighbors, cfg)
//	Y := status.InitialEmbedding(2, 1)
//	err = bhtsne.Run(context.Background(), status, Y)
//	// Y now holds the d*N column-major embedding.
//
// Or, letting the library find neighbors itself:
//
//	status, warnings, err := bhtsne.InitializeFromPoints(points, dims, cfg)
//
// # Barnes-Hut approximation
//
// Repulsive forces between points are approximated using a space-partitioning
// tree (SPTree) and the Barnes-Hut multipole approximation, controlled by
// Config.Theta: 0 is exact (O(N^2) per iteration), larger values trade
// accuracy for speed.
package bhtsne
