package search

import (
	"fmt"
	"math"
	"slices"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/spatial"
)

// Config holds query-time limits and candidate generation parameters.
type Config struct {
	DefaultLimit    int     `toml:"default_limit"`
	MaxLimit        int     `toml:"max_limit"`
	Oversample      int     `toml:"oversample"`
	MinCandidates   int     `toml:"min_candidates"`
	DefaultRadiusM  float64 `toml:"default_radius_m"`
	CoverageMarginM float64 `toml:"coverage_margin_m"`
}

// DefaultConfig returns the reference limits: 20 results by default, at most
// 50, and k = max(5*(offset+limit), 100) candidates.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:    core.DefaultLimit,
		MaxLimit:        core.MaxLimit,
		Oversample:      5,
		MinCandidates:   100,
		DefaultRadiusM:  5000,
		CoverageMarginM: 2000,
	}
}

// Validate rejects unusable limits.
func (c Config) Validate() error {
	switch {
	case c.MaxLimit < 1:
		return fmt.Errorf("%w: query max_limit must be positive", core.ErrConfiguration)
	case c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit:
		return fmt.Errorf("%w: query default_limit must be in [1,max_limit]", core.ErrConfiguration)
	case c.Oversample < 1 || c.MinCandidates < 1:
		return fmt.Errorf("%w: query oversample and min_candidates must be positive", core.ErrConfiguration)
	case c.DefaultRadiusM <= 0 || c.CoverageMarginM < 0:
		return fmt.Errorf("%w: query default_radius_m must be positive and coverage_margin_m non-negative", core.ErrConfiguration)
	}
	return nil
}

// Plan is a validated query ready to run against a generation.
type Plan struct {
	Vector      []float32
	Constraints filter.Constraints
	Center      *core.Point
	RadiusM     float64
	Limit       int
	Offset      int

	// breakdown maps each explicitly weighted preference to its dimensions.
	breakdown map[string][]int
}

// Candidates returns how many similarity candidates to fetch from an index of
// size n.
func (p *Plan) Candidates(cfg Config, n int) int {
	return min(max(cfg.Oversample*(p.Offset+p.Limit), cfg.MinCandidates), n)
}

// mapping lists the dimensions a preference writes. Inverted dimensions get
// 1-w: a strong preference for quiet asks for low proximity to roads.
type mapping struct {
	dims     []int
	inverted []int
}

// Encoder turns PreferenceQuery values into Plans laid out by one schema.
// It is immutable and safe for concurrent use.
type Encoder struct {
	schema   embedding.Schema
	filter   *filter.Filter
	cfg      Config
	mappings map[string]mapping
}

// NewEncoder returns an Encoder for schema. A nil purposes table falls back
// to filter.DefaultPurposeTable().
func NewEncoder(schema embedding.Schema, purposes filter.PurposeTable, cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := schema
	return &Encoder{
		schema:   schema,
		filter:   filter.New(purposes),
		cfg:      cfg,
		mappings: map[string]mapping{
			core.PrefForest:  {dims: []int{s.DistanceDim(core.POIForest), s.CoverageDim(core.CoverForest)}},
			core.PrefWater:   {dims: []int{s.DistanceDim(core.POIWater), s.CoverageDim(core.CoverWater)}},
			core.PrefSchool:  {dims: []int{s.DistanceDim(core.POISchool)}},
			core.PrefShop:    {dims: []int{s.DistanceDim(core.POIShop)}},
			core.PrefBusStop: {dims: []int{s.DistanceDim(core.POIBusStop)}},
			core.PrefQuiet: {
				dims:     []int{s.Dim(embedding.SegScores, embedding.ScoreQuietness)},
				inverted: []int{s.DistanceDim(core.POIIndustrial), s.DistanceDim(core.POIMainRoad)},
			},
			core.PrefNature:        {dims: []int{s.Dim(embedding.SegScores, embedding.ScoreNature)}},
			core.PrefAccessibility: {dims: []int{s.Dim(embedding.SegScores, embedding.ScoreAccessibility)}},
		},
	}, nil
}

// Schema returns the layout query vectors are written in.
func (e *Encoder) Schema() embedding.Schema {
	return e.schema
}

// Filter returns the category filter plans are evaluated with.
func (e *Encoder) Filter() *filter.Filter {
	return e.filter
}

// Config returns the query limits in use.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Encode validates q and builds its Plan. Every failure wraps
// core.ErrInvalidRequest.
func (e *Encoder) Encode(q *core.PreferenceQuery) (*Plan, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: query is nil", core.ErrInvalidRequest)
	}
	if err := e.validate(q); err != nil {
		return nil, err
	}

	plan := &Plan{
		Vector: e.vector(q.Weights),
		Limit:  q.Limit,
		Offset: q.Offset,
		Constraints: filter.Constraints{
			ZoningSymbols: q.ZoningSymbols,
			ZoningPurpose: q.ZoningPurpose,
			BuildableOnly: q.BuildableOnly,
			Ownership:     q.Ownership,
			Area:          q.Area,
			Quietness:     q.Categories.Quietness,
			Nature:        q.Categories.Nature,
			Accessibility: q.Categories.Accessibility,
			Size:          q.Categories.Size,
		},
		breakdown: make(map[string][]int, len(q.Weights)),
	}
	if plan.Limit == 0 {
		plan.Limit = e.cfg.DefaultLimit
	}
	if loc := q.Location; loc != nil {
		plan.Constraints.Gmina = loc.Gmina
		if loc.Point != nil {
			c := spatial.FromWGS84(loc.Point.Lat, loc.Point.Lon)
			plan.Center = &c
			plan.RadiusM = loc.RadiusM
			if plan.RadiusM == 0 {
				plan.RadiusM = e.cfg.DefaultRadiusM
			}
		}
	}
	for key := range q.Weights {
		m := e.mappings[key]
		plan.breakdown[key] = append(slices.Clone(m.dims), m.inverted...)
	}
	return plan, nil
}

func (e *Encoder) validate(q *core.PreferenceQuery) error {
	for key, w := range q.Weights {
		if _, ok := e.mappings[key]; !ok {
			return fmt.Errorf("%w: unknown weight %q", core.ErrInvalidRequest, key)
		}
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %s=%v outside [0,1]", core.ErrInvalidRequest, key, w)
		}
	}
	if q.Limit < 0 || q.Limit > e.cfg.MaxLimit {
		return fmt.Errorf("%w: limit %d outside [1,%d]", core.ErrInvalidRequest, q.Limit, e.cfg.MaxLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", core.ErrInvalidRequest, q.Offset)
	}
	if err := filter.ValidateArea(q.Area); err != nil {
		return err
	}
	if q.ZoningPurpose != "" && !core.IsKnownPurpose(q.ZoningPurpose) {
		return fmt.Errorf("%w: unknown zoning purpose %q", core.ErrInvalidRequest, q.ZoningPurpose)
	}
	if loc := q.Location; loc != nil {
		if loc.RadiusM < 0 || math.IsNaN(loc.RadiusM) {
			return fmt.Errorf("%w: negative radius", core.ErrInvalidRequest)
		}
		if loc.RadiusM > 0 && loc.Point == nil {
			return fmt.Errorf("%w: radius requires a point", core.ErrInvalidRequest)
		}
		if p := loc.Point; p != nil && (p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180) {
			return fmt.Errorf("%w: point %v,%v is not a WGS84 coordinate", core.ErrInvalidRequest, p.Lat, p.Lon)
		}
	}
	return nil
}

// vector writes weights into a neutral query vector and normalizes it.
func (e *Encoder) vector(weights map[string]float64) []float32 {
	raw := make([]float64, e.schema.Dimensions)
	for i := range raw {
		raw[i] = core.Neutral
	}
	// Fixed key order keeps overlapping writes deterministic.
	for _, key := range core.PreferenceKeys {
		w, ok := weights[key]
		if !ok {
			continue
		}
		m := e.mappings[key]
		for _, d := range m.dims {
			raw[d] = w
		}
		for _, d := range m.inverted {
			raw[d] = 1 - w
		}
	}
	return embedding.Normalize(raw)
}

// NeutralVector returns the query vector of a request with no weights.
func NeutralVector(schema embedding.Schema) []float32 {
	raw := make([]float64, schema.Dimensions)
	for i := range raw {
		raw[i] = core.Neutral
	}
	return embedding.Normalize(raw)
}

// Breakdown splits the similarity between plan and a parcel vector into
// per-preference contributions. Dimensions no explicit weight touched are
// summed under "baseline", so the values add up to the similarity.
func (p *Plan) Breakdown(parcel []float32) map[string]float64 {
	out := make(map[string]float64, len(p.breakdown)+1)
	claimed := make([]bool, len(p.Vector))
	for key, dims := range p.breakdown {
		var sum float64
		for _, d := range dims {
			sum += float64(p.Vector[d]) * float64(parcel[d])
			claimed[d] = true
		}
		out[key] = sum
	}
	var base float64
	for d := range p.Vector {
		if !claimed[d] {
			base += float64(p.Vector[d]) * float64(parcel[d])
		}
	}
	out[BaselineKey] = base
	return out
}

// BaselineKey labels the similarity share of dimensions no weight addressed.
const BaselineKey = "baseline"
