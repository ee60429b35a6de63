package features

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultConfig(), WithWorkers(4))
	require.NoError(t, err)
	return s
}

func TestStepFunctionEval(t *testing.T) {
	f := StepFunction{
		Steps:     []Step{{Below: 100, Points: 30}, {Below: 300, Points: 20}},
		Otherwise: 5,
	}
	assert.Equal(t, 30.0, f.Eval(0))
	assert.Equal(t, 30.0, f.Eval(99.9))
	assert.Equal(t, 20.0, f.Eval(100))
	assert.Equal(t, 5.0, f.Eval(300))
	assert.Equal(t, 5.0, f.Eval(1e9))
}

func TestCompute(t *testing.T) {
	s := newTestScorer(t)

	t.Run("quiet green parcel", func(t *testing.T) {
		p := &core.Parcel{
			Distances: map[core.POIKind]float64{
				core.POIIndustrial: 4000,
				core.POIMainRoad:   800,
				core.POIForest:     50,
				core.POIWater:      350,
				core.POIBusStop:    450,
				core.POISchool:     1800,
			},
			BufferCoverage: map[core.CoverKind]float64{
				core.CoverForest:    0.55,
				core.CoverBuildings: 0.02,
			},
		}
		got := s.Compute(p)
		assert.Equal(t, 100, got.Quietness)
		// 30 forest + 10 water + floor(40*0.55)=22
		assert.Equal(t, 62, got.Nature)
		// 25 bus + 20 school + 20 main road
		assert.Equal(t, 65, got.Accessibility)
	})

	t.Run("loud industrial parcel", func(t *testing.T) {
		p := &core.Parcel{
			Distances: map[core.POIKind]float64{
				core.POIIndustrial: 200,
				core.POIMainRoad:   50,
			},
			BufferCoverage: map[core.CoverKind]float64{core.CoverBuildings: 0.4},
		}
		got := s.Compute(p)
		assert.Equal(t, 0, got.Quietness)
		assert.Equal(t, 0, got.Nature)
		assert.Equal(t, 30, got.Accessibility)
	})

	t.Run("missing distances contribute nothing", func(t *testing.T) {
		got := s.Compute(&core.Parcel{})
		assert.Equal(t, core.Scores{Quietness: 100}, got)
	})
}

func TestComputeStaysInRange(t *testing.T) {
	cfg := DefaultConfig()
	// Exaggerated tables push raw sums far outside [0,100].
	cfg.Nature.ForestCoverage = 500
	cfg.Quietness.Industrial.Steps = []Step{{Below: 1e6, Points: 400}}
	s, err := NewScorer(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := &core.Parcel{
			Distances:      map[core.POIKind]float64{},
			BufferCoverage: map[core.CoverKind]float64{},
		}
		for _, kind := range core.POIKinds {
			if rng.Intn(4) > 0 {
				p.Distances[kind] = rng.Float64() * 12000
			}
		}
		for _, kind := range core.CoverKinds {
			p.BufferCoverage[kind] = rng.Float64()
		}
		got := s.Compute(p)
		for name, v := range map[string]int{"quietness": got.Quietness, "nature": got.Nature, "accessibility": got.Accessibility} {
			assert.GreaterOrEqual(t, v, 0, name)
			assert.LessOrEqual(t, v, 100, name)
		}
	}
}

func TestCategorize(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name   string
		scores core.Scores
		area   float64
		want   core.QualityCategory
	}{
		{
			name:   "top buckets",
			scores: core.Scores{Quietness: 80, Nature: 70, Accessibility: 70},
			area:   5000,
			want:   core.QualityCategory{Quietness: core.VeryQuiet, Nature: core.VeryGreen, Accessibility: core.AccessExcellent, Size: core.SizeVeryLarge},
		},
		{
			name:   "just below boundaries",
			scores: core.Scores{Quietness: 79, Nature: 49, Accessibility: 29},
			area:   799,
			want:   core.QualityCategory{Quietness: core.Quiet, Nature: core.ModerateNature, Accessibility: core.AccessLimited, Size: core.SizeSmall},
		},
		{
			name:   "bottom buckets",
			scores: core.Scores{},
			area:   1500,
			want:   core.QualityCategory{Quietness: core.Loud, Nature: core.Urban, Accessibility: core.AccessLimited, Size: core.SizeLarge},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Categorize(tt.scores, tt.area))
		})
	}
}

func TestEnrich(t *testing.T) {
	s := newTestScorer(t)

	t.Run("caps distances and derives centroid", func(t *testing.T) {
		p := &core.Parcel{
			Geometry: core.Rectangle(core.Point{X: 1000, Y: 2000}, 40, 20),
			AreaM2:   800,
			Distances: map[core.POIKind]float64{
				core.POIForest: 25000,
			},
		}
		s.Enrich(p)
		assert.Equal(t, 10000.0, p.Distances[core.POIForest])
		assert.InDelta(t, 1020, p.Centroid.X, 1e-9)
		assert.InDelta(t, 2010, p.Centroid.Y, 1e-9)
		require.NotNil(t, p.Scores)
		assert.Equal(t, core.SizeMedium, p.Category.Size)
	})

	t.Run("keeps supplied scores", func(t *testing.T) {
		p := &core.Parcel{AreaM2: 900, Scores: &core.Scores{Quietness: 12, Nature: 90, Accessibility: 55}}
		s.Enrich(p)
		assert.Equal(t, 12, p.Scores.Quietness)
		assert.Equal(t, core.Loud, p.Category.Quietness)
		assert.Equal(t, core.VeryGreen, p.Category.Nature)
		assert.False(t, p.ScoresDerived)
	})

	t.Run("recomputes derived scores under new tables", func(t *testing.T) {
		p := &core.Parcel{
			AreaM2:    900,
			Distances: map[core.POIKind]float64{core.POIForest: 50},
		}
		s.Enrich(p)
		require.True(t, p.ScoresDerived)
		before := p.Scores.Nature

		cfg := DefaultConfig()
		cfg.Nature.Forest = StepFunction{Steps: []Step{{Below: 100, Points: 0}}}
		retuned, err := NewScorer(cfg)
		require.NoError(t, err)

		retuned.Enrich(p)
		assert.Less(t, p.Scores.Nature, before)
		assert.Equal(t, retuned.Compute(p), *p.Scores)
	})
}

func TestEnrichAllMatchesSequential(t *testing.T) {
	s := newTestScorer(t)

	build := func() []*core.Parcel {
		rng := rand.New(rand.NewSource(42))
		out := make([]*core.Parcel, 257)
		for i := range out {
			out[i] = &core.Parcel{
				ID:     fmt.Sprintf("p%03d", i),
				AreaM2: 400 + rng.Float64()*4000,
				Distances: map[core.POIKind]float64{
					core.POIForest:     rng.Float64() * 3000,
					core.POIIndustrial: rng.Float64() * 3000,
					core.POIBusStop:    rng.Float64() * 3000,
				},
			}
		}
		return out
	}

	parallel := build()
	require.NoError(t, s.EnrichAll(context.Background(), parallel))

	sequential := build()
	for _, p := range sequential {
		s.Enrich(p)
	}

	for i := range parallel {
		assert.Equal(t, sequential[i].Scores, parallel[i].Scores, parallel[i].ID)
		assert.Equal(t, sequential[i].Category, parallel[i].Category, parallel[i].ID)
	}
}

func TestEnrichAllCancelled(t *testing.T) {
	s := newTestScorer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.EnrichAll(ctx, []*core.Parcel{{ID: "a", AreaM2: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	t.Run("unsorted steps", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Nature.Forest.Steps = []Step{{Below: 300, Points: 20}, {Below: 100, Points: 30}}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfiguration)
	})

	t.Run("non-descending buckets", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Buckets.Nature = [3]float64{30, 50, 70}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfiguration)
	})

	t.Run("bad size buckets", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Buckets.Size = [3]float64{0, 0, 0}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfiguration)
	})
}
