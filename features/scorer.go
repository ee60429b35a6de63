package features

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Scorer turns raw parcel features into composite scores and quality buckets.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	cfg     Config
	workers int
	logger  *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer) error

// WithWorkers sets the number of goroutines EnrichAll uses.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Scorer) error {
		if n < 1 {
			n = 1
		}
		s.workers = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{
		cfg:     cfg,
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "features")
	return s, nil
}

// Config returns the scoring tables in use.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Compute derives the three composite scores. Unknown distances contribute nothing.
func (s *Scorer) Compute(p *core.Parcel) core.Scores {
	return core.Scores{
		Quietness:     s.quietness(p),
		Nature:        s.nature(p),
		Accessibility: s.accessibility(p),
	}
}

func (s *Scorer) quietness(p *core.Parcel) int {
	q := s.cfg.Quietness
	score := q.Base
	if d, ok := p.Distance(core.POIIndustrial); ok {
		score -= q.Industrial.Eval(d)
	}
	if d, ok := p.Distance(core.POIMainRoad); ok {
		score -= q.MainRoad.Eval(d)
	}
	if c, ok := p.Coverage(core.CoverBuildings); ok {
		score -= q.BuildingDensity.Eval(c)
	}
	return clamp(score)
}

func (s *Scorer) nature(p *core.Parcel) int {
	n := s.cfg.Nature
	var score float64
	if d, ok := p.Distance(core.POIForest); ok {
		score += n.Forest.Eval(d)
	}
	if d, ok := p.Distance(core.POIWater); ok {
		score += n.Water.Eval(d)
	}
	if c, ok := p.Coverage(core.CoverForest); ok {
		score += math.Floor(n.ForestCoverage * c)
	}
	return clamp(score)
}

func (s *Scorer) accessibility(p *core.Parcel) int {
	a := s.cfg.Accessibility
	var score float64
	if d, ok := p.Distance(core.POIBusStop); ok {
		score += a.BusStop.Eval(d)
	}
	if d, ok := p.Distance(core.POISchool); ok {
		score += a.School.Eval(d)
	}
	if d, ok := p.Distance(core.POIMainRoad); ok {
		score += a.MainRoad.Eval(d)
	}
	return clamp(score)
}

func clamp(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Min(math.Max(v, 0), 100)))
}

// Categorize maps scores and area onto the four quality buckets.
func (s *Scorer) Categorize(scores core.Scores, areaM2 float64) core.QualityCategory {
	b := s.cfg.Buckets
	return core.QualityCategory{
		Quietness:     pick(float64(scores.Quietness), b.Quietness, core.VeryQuiet, core.Quiet, core.ModeratelyQuiet, core.Loud),
		Nature:        pick(float64(scores.Nature), b.Nature, core.VeryGreen, core.Green, core.ModerateNature, core.Urban),
		Accessibility: pick(float64(scores.Accessibility), b.Accessibility, core.AccessExcellent, core.AccessGood, core.AccessModerate, core.AccessLimited),
		Size:          sizeBucket(areaM2, b.Size),
	}
}

func pick[T any](v float64, bounds [3]float64, top, high, mid, low T) T {
	switch {
	case v >= bounds[0]:
		return top
	case v >= bounds[1]:
		return high
	case v >= bounds[2]:
		return mid
	default:
		return low
	}
}

func sizeBucket(area float64, bounds [3]float64) core.SizeBucket {
	switch {
	case area < bounds[0]:
		return core.SizeSmall
	case area < bounds[1]:
		return core.SizeMedium
	case area < bounds[2]:
		return core.SizeLarge
	default:
		return core.SizeVeryLarge
	}
}

// Enrich caps distances at the configured maximum, derives the centroid when
// missing, computes Scores and assigns Category.
// Scores supplied with the input are kept; scores this package derived
// earlier are recomputed under the current tables.
func (s *Scorer) Enrich(p *core.Parcel) {
	for kind, d := range p.Distances {
		if d > s.cfg.MaxDistanceM {
			p.Distances[kind] = s.cfg.MaxDistanceM
		}
	}
	if p.Centroid.IsZero() {
		p.Centroid = p.Geometry.Centroid()
	}
	if p.Scores == nil || p.ScoresDerived {
		scores := s.Compute(p)
		p.Scores = &scores
		p.ScoresDerived = true
	}
	p.Category = s.Categorize(*p.Scores, p.AreaM2)
}

// EnrichAll enriches parcels in parallel, sharding the slice across an ants
// pool. Each parcel is touched by exactly one worker.
func (s *Scorer) EnrichAll(ctx context.Context, parcels []*core.Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	err := Shard(ctx, len(parcels), s.workers, func(lo, hi int) {
		for _, p := range parcels[lo:hi] {
			s.Enrich(p)
		}
	})
	if err != nil {
		return err
	}
	s.logger.Debug("enriched parcels", "count", len(parcels), "workers", s.workers)
	return nil
}

// Shard splits [0,n) into contiguous ranges and runs fn over them on an ants
// pool of the given size. It returns ctx.Err() if the context ends before all
// shards were submitted.
func Shard(ctx context.Context, n, workers int, fn func(lo, hi int)) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	size := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		hi := min(lo+size, n)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(lo, hi)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return ctx.Err()
}
