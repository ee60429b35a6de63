package similarity

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Config tunes the index. BruteForceMax decides the strategy: at or below it
// every query scans all vectors; above it HNSW generates candidates that are
// then rescored exactly.
type Config struct {
	M                   int   `toml:"m" msgpack:"m"`
	EfConstruction      int   `toml:"ef_construction" msgpack:"ef_construction"`
	EfSearch            int   `toml:"ef_search" msgpack:"ef_search"`
	Seed                int64 `toml:"seed" msgpack:"seed"`
	BruteForceMax       int   `toml:"brute_force_max" msgpack:"brute_force_max"`
	CandidateMultiplier int   `toml:"candidate_multiplier" msgpack:"candidate_multiplier"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		M:                   16,
		EfConstruction:      200,
		EfSearch:            100,
		Seed:                42,
		BruteForceMax:       5000,
		CandidateMultiplier: 4,
	}
}

// Validate rejects parameters HNSW cannot work with.
func (c Config) Validate() error {
	switch {
	case c.M < 2 || c.M > math.MaxUint16:
		return fmt.Errorf("%w: similarity m must be in [2,%d]", core.ErrConfiguration, math.MaxUint16)
	case c.EfConstruction < c.M:
		return fmt.Errorf("%w: similarity ef_construction must be >= m", core.ErrConfiguration)
	case c.EfSearch < 1:
		return fmt.Errorf("%w: similarity ef_search must be positive", core.ErrConfiguration)
	case c.BruteForceMax < 0:
		return fmt.Errorf("%w: similarity brute_force_max must be non-negative", core.ErrConfiguration)
	case c.CandidateMultiplier < 1:
		return fmt.Errorf("%w: similarity candidate_multiplier must be positive", core.ErrConfiguration)
	}
	return nil
}

// Entry is one vector to index.
type Entry struct {
	ID     string
	Vector []float32
}

// Match is a scored result. Score is the exact cosine similarity.
type Match struct {
	ID    string
	Score float64
}

// Index answers cosine top-k queries. It is immutable after Build and safe
// for concurrent queries. Results are fully determined by the entries and
// Config.Seed.
type Index struct {
	cfg     Config
	dims    int
	ids     []string
	byID    map[string]uint32
	vectors []float32
	graph   *hnswGraph
}

// Build indexes entries. Vectors are copied and normalized; entries are
// inserted in ascending ID order.
func Build(ctx context.Context, dims int, entries []Entry, cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", core.ErrConfiguration)
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })

	idx := &Index{
		cfg:     cfg,
		dims:    dims,
		ids:     make([]string, len(sorted)),
		byID:    make(map[string]uint32, len(sorted)),
		vectors: make([]float32, 0, len(sorted)*dims),
	}
	for i, e := range sorted {
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("%w: %s has %d dimensions, want %d", ErrDimensionMismatch, e.ID, len(e.Vector), dims)
		}
		if i > 0 && sorted[i-1].ID == e.ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		idx.ids[i] = e.ID
		idx.byID[e.ID] = uint32(i)
		idx.vectors = append(idx.vectors, normalized(e.Vector)...)
	}

	if len(sorted) > cfg.BruteForceMax {
		g := newGraph(cfg, dims, idx.vectors)
		rng := rand.New(rand.NewSource(cfg.Seed))
		for i := range sorted {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			g.insert(uint32(i), rng)
		}
		idx.graph = g
	}
	return idx, nil
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// Dimensions returns the vector length.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Approximate reports whether queries go through the HNSW graph.
func (idx *Index) Approximate() bool {
	return idx.graph != nil
}

// Config returns the build parameters.
func (idx *Index) Config() Config {
	return idx.cfg
}

// Vector returns the stored unit vector for id. The slice must not be modified.
func (idx *Index) Vector(id string) ([]float32, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	return idx.vectorAt(i), true
}

func (idx *Index) vectorAt(i uint32) []float32 {
	off := int(i) * idx.dims
	return idx.vectors[off : off+idx.dims]
}

// Score returns the exact cosine similarity between query and id.
func (idx *Index) Score(query []float32, id string) (float64, bool) {
	v, ok := idx.Vector(id)
	if !ok || len(query) != idx.dims {
		return 0, false
	}
	return dot64(normalized(query), v), true
}

// TopK returns the k most similar vectors, best first. Equal scores are
// ordered by ID ascending.
func (idx *Index) TopK(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) != idx.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(query), idx.dims)
	}
	if k <= 0 || len(idx.ids) == 0 {
		return nil, nil
	}
	q := normalized(query)

	var candidates []uint32
	if idx.graph == nil {
		candidates = make([]uint32, len(idx.ids))
		for i := range candidates {
			candidates[i] = uint32(i)
		}
	} else {
		ef := max(idx.cfg.EfSearch, k*idx.cfg.CandidateMultiplier)
		candidates = idsOf(idx.graph.search(q, ef))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{ID: idx.ids[c], Score: dot64(q, idx.vectorAt(c))}
	}
	slices.SortFunc(matches, CompareMatches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// CompareMatches orders by score descending then ID ascending.
func CompareMatches(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func dot64(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
