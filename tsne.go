package bhtsne

import (
	"context"
	"math"
	"math/rand"
)

// Config controls Barnes-Hut t-SNE behavior.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Perplexity balances attention between local and global structure.
	// Only used by InitializeFromPoints, which derives K from it; Initialize
	// takes neighbors as given and infers an effective perplexity of K/3.
	// Must be > 0. Default: 30.
	Perplexity float64

	// Theta controls the Barnes-Hut approximation. 0 visits every leaf
	// (O(N^2) per iteration), which is exact when every leaf holds one
	// point; larger values trade accuracy for speed. Must be >= 0.
	// Default: 0.5.
	Theta float64

	// MaxIter is the total number of gradient descent iterations.
	// Must be > 0. Default: 1000.
	MaxIter int

	// StopLyingIter is the iteration at which the early-exaggeration
	// multiplier on attractive forces switches from ExaggerationFactor to 1.
	// Default: 250.
	StopLyingIter int

	// MomSwitchIter is the iteration at which momentum switches from
	// StartMomentum to FinalMomentum. Default: 250.
	MomSwitchIter int

	// StartMomentum is the momentum coefficient used while iter < MomSwitchIter.
	// Default: 0.5.
	StartMomentum float64

	// FinalMomentum is the momentum coefficient used once iter >= MomSwitchIter.
	// Default: 0.8.
	FinalMomentum float64

	// Eta is the learning rate applied to the gained, momentum-accumulated
	// gradient. Default: 200.
	Eta float64

	// ExaggerationFactor scales attractive forces during early exaggeration.
	// Default: 12.
	ExaggerationFactor float64

	// MaxDepth caps the Barnes-Hut tree's depth; leaves at the cap absorb
	// every point routed to them instead of splitting further.
	// Must be > 0. Default: 7.
	MaxDepth int

	// PerplexitySearch selects the perplexity calibration root-finder.
	// Default: PerplexitySearchAdaptive.
	PerplexitySearch PerplexitySearchMode

	// Backend selects the internal nearest-neighbor search structure used
	// only by InitializeFromPoints. Default: BackendAuto.
	Backend NeighborBackend

	// LeafSize controls the maximum number of points in a spatial tree leaf
	// node during the internal neighbor search. Default: 40.
	LeafSize int

	// Workers controls the number of goroutines for parallelizable stages
	// (perplexity calibration, repulsive force accumulation). 0 means run
	// sequentially; this only takes effect when set > 1.
	// Default: 0 (sequential).
	Workers int

	// Seed is a seed value for the caller to pass to Status.InitialEmbedding;
	// Initialize and Run do not read it. With the same initial embedding and
	// sequential execution (Workers <= 1), a run is reproducible.
	// Default: 1.
	Seed int64

	// Interpolate switches the repulsive-force computation from a direct
	// per-point Barnes-Hut query to evaluating the tree only at a regular
	// grid's corners and bilinearly interpolating each point's force from
	// its surrounding cell. Only supported at dims == 2; Run returns an
	// Unsupported error otherwise. Default: false.
	Interpolate bool

	// Intervals is the number of grid cells per axis when Interpolate is
	// enabled. Default: 20.
	Intervals int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Perplexity:         30,
		Theta:              0.5,
		MaxIter:            1000,
		StopLyingIter:      250,
		MomSwitchIter:      250,
		StartMomentum:      0.5,
		FinalMomentum:      0.8,
		Eta:                200,
		ExaggerationFactor: 12,
		MaxDepth:           7,
		PerplexitySearch:   PerplexitySearchAdaptive,
		Backend:            BackendAuto,
		LeafSize:           40,
		Seed:               1,
		Intervals:          defaultInterpolationIntervals,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Perplexity == 0 {
		cfg.Perplexity = def.Perplexity
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.StopLyingIter == 0 {
		cfg.StopLyingIter = def.StopLyingIter
	}
	if cfg.MomSwitchIter == 0 {
		cfg.MomSwitchIter = def.MomSwitchIter
	}
	if cfg.StartMomentum == 0 {
		cfg.StartMomentum = def.StartMomentum
	}
	if cfg.FinalMomentum == 0 {
		cfg.FinalMomentum = def.FinalMomentum
	}
	if cfg.Eta == 0 {
		cfg.Eta = def.Eta
	}
	if cfg.ExaggerationFactor == 0 {
		cfg.ExaggerationFactor = def.ExaggerationFactor
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = def.LeafSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.Intervals == 0 {
		cfg.Intervals = def.Intervals
	}
	return cfg
}

func validateConfig(cfg *Config) error {
	if cfg.Perplexity <= 0 {
		return newError(InvalidInput, "Perplexity must be > 0, got %v", cfg.Perplexity)
	}
	if cfg.Theta < 0 {
		return newError(InvalidInput, "Theta must be >= 0, got %v", cfg.Theta)
	}
	if cfg.MaxIter <= 0 {
		return newError(InvalidInput, "MaxIter must be > 0, got %d", cfg.MaxIter)
	}
	if cfg.MaxDepth <= 0 {
		return newError(InvalidInput, "MaxDepth must be > 0, got %d", cfg.MaxDepth)
	}
	if cfg.LeafSize <= 0 {
		return newError(InvalidInput, "LeafSize must be > 0, got %d", cfg.LeafSize)
	}
	return nil
}

func (cfg Config) parallelFor() ParallelFor {
	if cfg.Workers > 1 {
		return ParallelFor{Mode: ParallelBuiltin, Workers: cfg.Workers}
	}
	return defaultParallelFor()
}

// Status holds the full working state of an embedding: the affinity matrix
// P, the embedding Y and its optimizer state, and the Barnes-Hut tree
// rebuilt each iteration. It is produced by Initialize/InitializeFromPoints
// and advanced in place by Run.
type Status struct {
	n, dims       int
	neighbors     [][]int
	probabilities [][]float64
	tree          *spTree
	state         *gradientState

	// Y is the current embedding, row-major N*dims (equivalently dims rows
	// by N columns in column-major order, since each point's coordinates
	// occupy one contiguous block either way).
	Y []float64

	// Iter is the next iteration Run will execute; it starts at 0 and
	// advances as Run progresses, so a Status can be resumed across
	// multiple Run calls.
	Iter int

	cfg Config
}

// N returns the number of embedded points.
func (s *Status) N() int { return s.n }

// Dims returns the embedding dimensionality.
func (s *Status) Dims() int { return s.dims }

// InitialEmbedding returns a fresh row-major N*dims slice of small Gaussian
// noise, suitable as the initial Y passed to Run. seed makes the result
// reproducible independent of Config.Seed.
func (s *Status) InitialEmbedding(dims int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	Y := make([]float64, s.n*dims)
	for i := range Y {
		Y[i] = rng.NormFloat64() * 1e-4
	}
	return Y
}

// Initialize builds the affinity matrix P and the embedding state from a
// precomputed neighbor list. The effective perplexity is fixed at K/3, as
// implied by neighbors.K, regardless of cfg.Perplexity.
func Initialize(neighbors *NeighborInput, cfg Config) (*Status, []RowWarning, error) {
	cfg = applyDefaults(cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, nil, err
	}
	if err := neighbors.validate(); err != nil {
		return nil, nil, err
	}

	result := buildAffinities(neighbors, cfg.PerplexitySearch, cfg.parallelFor())

	status := &Status{
		n:             neighbors.N,
		neighbors:     result.neighbors,
		probabilities: result.probabilities,
		cfg:           cfg,
	}
	return status, result.warnings, nil
}

// InitializeFromPoints is a convenience path that runs an internal nearest-
// neighbor search over raw points before building P, so callers who do not
// already have a neighbor list do not need one. K is derived from
// cfg.Perplexity as ceil(perplexity*3), matching the distilled neighbor
// list's K convention.
func InitializeFromPoints(points []float64, dims int, cfg Config) (*Status, []RowWarning, error) {
	cfg = applyDefaults(cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, nil, err
	}
	if dims <= 0 {
		return nil, nil, newError(InvalidInput, "dims must be > 0, got %d", dims)
	}
	if len(points)%dims != 0 {
		return nil, nil, newError(InvalidInput, "len(points) (%d) is not a multiple of dims (%d)", len(points), dims)
	}

	n := len(points) / dims
	k := int(math.Ceil(cfg.Perplexity * 3))
	if k >= n {
		return nil, nil, newError(InvalidInput, "number of observations (%d) must exceed 3*Perplexity (%d)", n, k)
	}

	searcher, err := buildNeighborSearcher(points, n, dims, cfg.Backend, cfg.LeafSize)
	if err != nil {
		return nil, nil, err
	}
	neighbors := findNeighbors(n, k, searcher)

	return Initialize(neighbors, cfg)
}

// Run executes gradient descent iterations from status.Iter up to
// cfg.MaxIter, updating Y in place. ctx is checked at each iteration
// boundary; a cancellation stops the loop early and returns ctx.Err(),
// leaving Y at its last completed iteration.
func Run(ctx context.Context, status *Status, Y []float64) error {
	if status.n == 0 {
		return newError(InvalidInput, "status was not produced by Initialize/InitializeFromPoints")
	}
	if len(Y)%status.n != 0 {
		return newError(InvalidInput, "len(Y) (%d) is not a multiple of N (%d)", len(Y), status.n)
	}
	dims := len(Y) / status.n
	if status.cfg.Interpolate && dims != 2 {
		return newError(Unsupported, "Interpolate requires dims == 2, got %d", dims)
	}

	if status.tree == nil || status.dims != dims {
		status.dims = dims
		status.tree = newSPTree(dims, status.cfg.MaxDepth)
		status.state = newGradientState(status.n, dims)
	}
	status.Y = Y

	pf := status.cfg.parallelFor()

	for status.Iter < status.cfg.MaxIter {
		if err := ctx.Err(); err != nil {
			return err
		}

		multiplier := 1.0
		if status.Iter < status.cfg.StopLyingIter {
			multiplier = status.cfg.ExaggerationFactor
		}
		momentum := status.cfg.FinalMomentum
		if status.Iter < status.cfg.MomSwitchIter {
			momentum = status.cfg.StartMomentum
		}

		computeGradient(status, status.cfg, multiplier, pf)
		applyGradientStep(status, momentum, status.cfg.Eta)

		status.Iter++
	}

	return nil
}
