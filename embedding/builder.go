package embedding

import (
	"fmt"
	"math"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Builder turns enriched parcels into unit-length vectors laid out by a Schema.
// It is stateless and safe for concurrent use.
type Builder struct {
	schema Schema
}

// NewBuilder returns a Builder for schema.
func NewBuilder(schema Schema) *Builder {
	return &Builder{schema: schema}
}

// Schema returns the layout the builder writes.
func (b *Builder) Schema() Schema {
	return b.schema
}

// Raw returns the un-normalized feature vector. Every component lies in [0,1].
func (b *Builder) Raw(p *core.Parcel) []float64 {
	s := b.schema
	v := make([]float64, s.Dimensions)

	v[s.Dim(SegShape, ShapeArea)] = b.logArea(p.AreaM2)
	v[s.Dim(SegShape, ShapeCompactness)] = p.Geometry.Compactness()
	if c, ok := p.Coverage(core.CoverBuildings); ok {
		v[s.Dim(SegShape, ShapeUrbanization)] = c
	}
	if p.IsBuildable() {
		v[s.Dim(SegShape, ShapeBuildable)] = 1
	}

	for _, kind := range core.POIKinds {
		if d, ok := p.Distance(kind); ok {
			v[s.DistanceDim(kind)] = b.proximity(d)
		}
	}

	for _, kind := range core.CoverKinds {
		if c, ok := p.Coverage(kind); ok {
			v[s.CoverageDim(kind)] = unit(c)
		}
	}

	if z := p.Zoning; z != nil {
		v[s.Dim(SegZoning, ZoningFootprint)] = unit(z.MaxFootprintRatio / s.Params.MaxFootprintRatio)
		v[s.Dim(SegZoning, ZoningHeight)] = unit(z.MaxHeightM / s.Params.MaxHeightM)
		v[s.Dim(SegZoning, ZoningFloorArea)] = unit(z.MaxFloorAreaRatio / s.Params.MaxFloorAreaRatio)
		v[s.Dim(SegZoning, ZoningGreen)] = unit(z.MinGreenRatio / s.Params.MaxGreenRatio)
		for i, purpose := range core.Purposes {
			for _, zp := range z.Purposes {
				if zp == purpose {
					v[s.Dim(SegPurpose, i)] = 1
				}
			}
		}
	}

	if sc := p.Scores; sc != nil {
		v[s.Dim(SegScores, ScoreQuietness)] = unit(float64(sc.Quietness) / 100)
		v[s.Dim(SegScores, ScoreNature)] = unit(float64(sc.Nature) / 100)
		v[s.Dim(SegScores, ScoreAccessibility)] = unit(float64(sc.Accessibility) / 100)
	}

	return v
}

// Build returns the L2-normalized embedding of p.
// A parcel whose raw vector is all zeros yields ErrNoFeatures.
func (b *Builder) Build(p *core.Parcel) ([]float32, error) {
	raw := b.Raw(p)
	zero := true
	for _, x := range raw {
		if x != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, fmt.Errorf("%w: %s", ErrNoFeatures, p.ID)
	}
	return Normalize(raw), nil
}

// Check verifies a stored vector still fits the schema and is unit length.
func (b *Builder) Check(v []float32) error {
	if len(v) != b.schema.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), b.schema.Dimensions)
	}
	if n := Norm(v); math.IsNaN(n) || math.Abs(n-1) > 1e-4 {
		return fmt.Errorf("%w: norm %v", ErrDimensionMismatch, n)
	}
	return nil
}

// proximity maps a distance onto [0,1] with an inverse log so that closer is higher:
// 1 - min(ln(d+1)/ln(dmax+1), 1).
func (b *Builder) proximity(d float64) float64 {
	ratio := math.Log1p(math.Max(d, 0)) / math.Log1p(b.schema.Params.MaxDistanceM)
	return 1 - math.Min(ratio, 1)
}

// logArea maps area onto [0,1] on a log scale between the configured bounds.
func (b *Builder) logArea(a float64) float64 {
	lo, hi := math.Log(b.schema.Params.MinAreaM2), math.Log(b.schema.Params.MaxAreaM2)
	if a <= 0 {
		return 0
	}
	return unit((math.Log(a) - lo) / (hi - lo))
}

func unit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Min(math.Max(x, 0), 1)
}
