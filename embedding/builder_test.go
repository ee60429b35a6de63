package embedding

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

func randomParcel(rng *rand.Rand, i int) *core.Parcel {
	p := &core.Parcel{
		ID:             fmt.Sprintf("p%d", i),
		Geometry:       core.Rectangle(core.Point{}, 10+rng.Float64()*100, 10+rng.Float64()*100),
		AreaM2:         50 + rng.Float64()*80000,
		Distances:      map[core.POIKind]float64{},
		BufferCoverage: map[core.CoverKind]float64{},
		Scores: &core.Scores{
			Quietness:     rng.Intn(101),
			Nature:        rng.Intn(101),
			Accessibility: rng.Intn(101),
		},
	}
	for _, kind := range core.POIKinds {
		if rng.Intn(3) > 0 {
			p.Distances[kind] = rng.Float64() * 15000
		}
	}
	for _, kind := range core.CoverKinds {
		p.BufferCoverage[kind] = rng.Float64()
	}
	if rng.Intn(2) == 0 {
		p.Zoning = &core.Zoning{
			Symbol:            "MN",
			Purposes:          []string{core.PurposeResidentialSingle},
			MaxFootprintRatio: 0.3,
			MaxHeightM:        9,
			MaxFloorAreaRatio: 0.6,
			MinGreenRatio:     0.5,
		}
	}
	return p
}

func TestSchemaLayout(t *testing.T) {
	s := MustSchema(DefaultParams())
	assert.Equal(t, 32, s.Dimensions)
	assert.Equal(t, Version, s.Version)

	end := 0
	for _, seg := range s.Segments {
		assert.Equal(t, end, seg.Offset, seg.Name)
		end += seg.Length
	}
	assert.Equal(t, s.Dimensions, end)

	assert.Equal(t, 4, s.DistanceDim(core.POIForest))
	assert.Equal(t, 12, s.CoverageDim(core.CoverForest))
	assert.Equal(t, 31, s.Dim(SegScores, ScoreAccessibility))
	assert.Panics(t, func() { s.Dim(SegScores, 3) })
}

func TestNewSchemaRejectsBadParams(t *testing.T) {
	p := DefaultParams()
	p.MaxAreaM2 = p.MinAreaM2
	_, err := NewSchema(p)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestFingerprintAndCompatibility(t *testing.T) {
	a := MustSchema(DefaultParams())
	b := MustSchema(DefaultParams())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NoError(t, a.CheckCompatible(b.Version, b.Fingerprint()))

	p := DefaultParams()
	p.MaxDistanceM = 5000
	c := MustSchema(p)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	err := a.CheckCompatible(c.Version, c.Fingerprint())
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	err = a.CheckCompatible("v0", a.Fingerprint())
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestBuildUnitNorm(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 300; i++ {
		p := randomParcel(rng, i)
		v, err := b.Build(p)
		require.NoError(t, err)
		require.Len(t, v, 32)
		assert.InDelta(t, 1.0, Norm(v), 1e-6, p.ID)
		require.NoError(t, b.Check(v))
	}
}

func TestRawComponentsInUnitRange(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		for d, x := range b.Raw(randomParcel(rng, i)) {
			assert.GreaterOrEqual(t, x, 0.0, "dim %d", d)
			assert.LessOrEqual(t, x, 1.0, "dim %d", d)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))
	p := randomParcel(rand.New(rand.NewSource(3)), 0)

	v1, err := b.Build(p)
	require.NoError(t, err)
	v2, err := b.Build(p)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestProximity(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))

	assert.InDelta(t, 1.0, b.proximity(0), 1e-12)
	assert.InDelta(t, 0.0, b.proximity(10000), 1e-12)
	assert.InDelta(t, 0.0, b.proximity(50000), 1e-12)
	want := 1 - math.Log(101)/math.Log(10001)
	assert.InDelta(t, want, b.proximity(100), 1e-12)
	assert.Greater(t, b.proximity(50), b.proximity(500))
}

func TestLogArea(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))

	assert.Equal(t, 0.0, b.logArea(50))
	assert.InDelta(t, 0.0, b.logArea(100), 1e-12)
	assert.InDelta(t, 1.0, b.logArea(50000), 1e-12)
	assert.Equal(t, 1.0, b.logArea(1e7))
	assert.Greater(t, b.logArea(1200), b.logArea(900))
}

func TestUnknownDistanceIsZero(t *testing.T) {
	s := MustSchema(DefaultParams())
	b := NewBuilder(s)
	p := &core.Parcel{
		ID:        "x",
		Geometry:  core.Rectangle(core.Point{}, 30, 30),
		AreaM2:    900,
		Distances: map[core.POIKind]float64{core.POIWater: 100},
	}
	raw := b.Raw(p)
	assert.Equal(t, 0.0, raw[s.DistanceDim(core.POIForest)])
	assert.Greater(t, raw[s.DistanceDim(core.POIWater)], 0.0)
	assert.Equal(t, 0.0, raw[s.Dim(SegShape, ShapeBuildable)])
}

func TestBuildNoFeatures(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))
	_, err := b.Build(&core.Parcel{ID: "empty", AreaM2: 10})
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestCheckRejectsWrongVectors(t *testing.T) {
	b := NewBuilder(MustSchema(DefaultParams()))
	assert.ErrorIs(t, b.Check(make([]float32, 16)), ErrDimensionMismatch)
	assert.ErrorIs(t, b.Check(make([]float32, 32)), ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float64{1, 0, 0},
			expected: []float32{1, 0, 0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float64{3, 4},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "zero vector stays zero",
			input:    []float64{0, 0},
			expected: []float32{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			require.Len(t, result, len(tt.expected))
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}
		})
	}
}
