package embedding

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Version identifies the segment layout below. Bump it whenever a segment,
// its order or a transform changes.
const Version = "v1"

// Segment names.
const (
	SegShape    = "shape"
	SegDistance = "distance"
	SegCoverage = "coverage"
	SegZoning   = "zoning"
	SegPurpose  = "purpose"
	SegScores   = "scores"
)

// Positions inside the shape segment.
const (
	ShapeArea = iota
	ShapeCompactness
	ShapeUrbanization
	ShapeBuildable
	shapeLen
)

// Positions inside the zoning segment.
const (
	ZoningFootprint = iota
	ZoningHeight
	ZoningFloorArea
	ZoningGreen
	zoningLen
)

// Positions inside the scores segment.
const (
	ScoreQuietness = iota
	ScoreNature
	ScoreAccessibility
	scoresLen
)

// Segment is a named, fixed-offset slice of the embedding.
type Segment struct {
	Name   string `msgpack:"name"`
	Offset int    `msgpack:"offset"`
	Length int    `msgpack:"length"`
}

// Params holds the constants the transforms normalize against.
type Params struct {
	MaxDistanceM      float64 `toml:"max_distance_m" msgpack:"max_distance_m"`
	MinAreaM2         float64 `toml:"min_area_m2" msgpack:"min_area_m2"`
	MaxAreaM2         float64 `toml:"max_area_m2" msgpack:"max_area_m2"`
	MaxFootprintRatio float64 `toml:"max_footprint_ratio" msgpack:"max_footprint_ratio"`
	MaxHeightM        float64 `toml:"max_height_m" msgpack:"max_height_m"`
	MaxFloorAreaRatio float64 `toml:"max_floor_area_ratio" msgpack:"max_floor_area_ratio"`
	MaxGreenRatio     float64 `toml:"max_green_ratio" msgpack:"max_green_ratio"`
}

// DefaultParams returns the reference normalization constants.
func DefaultParams() Params {
	return Params{
		MaxDistanceM:      10000,
		MinAreaM2:         100,
		MaxAreaM2:         50000,
		MaxFootprintRatio: 1,
		MaxHeightM:        30,
		MaxFloorAreaRatio: 3,
		MaxGreenRatio:     1,
	}
}

// Validate rejects constants the transforms cannot use.
func (p Params) Validate() error {
	switch {
	case p.MaxDistanceM <= 0:
		return fmt.Errorf("%w: embedding max_distance_m must be positive", core.ErrConfiguration)
	case p.MinAreaM2 <= 0 || p.MaxAreaM2 <= p.MinAreaM2:
		return fmt.Errorf("%w: embedding area bounds must satisfy 0 < min < max", core.ErrConfiguration)
	case p.MaxFootprintRatio <= 0 || p.MaxHeightM <= 0 || p.MaxFloorAreaRatio <= 0 || p.MaxGreenRatio <= 0:
		return fmt.Errorf("%w: embedding zoning maxima must be positive", core.ErrConfiguration)
	}
	return nil
}

// Schema describes the embedding layout. Query and parcel vectors must be
// built from schemas with equal fingerprints to be comparable.
type Schema struct {
	Version    string    `msgpack:"version"`
	Dimensions int       `msgpack:"dimensions"`
	Segments   []Segment `msgpack:"segments"`
	Params     Params    `msgpack:"params"`
}

// NewSchema lays out the current version with the given constants.
func NewSchema(params Params) (Schema, error) {
	if err := params.Validate(); err != nil {
		return Schema{}, err
	}
	lengths := []struct {
		name string
		n    int
	}{
		{SegShape, shapeLen},
		{SegDistance, len(core.POIKinds)},
		{SegCoverage, len(core.CoverKinds)},
		{SegZoning, zoningLen},
		{SegPurpose, len(core.Purposes)},
		{SegScores, scoresLen},
	}
	s := Schema{Version: Version, Params: params}
	for _, l := range lengths {
		s.Segments = append(s.Segments, Segment{Name: l.name, Offset: s.Dimensions, Length: l.n})
		s.Dimensions += l.n
	}
	return s, nil
}

// MustSchema is NewSchema for constants known to be valid.
func MustSchema(params Params) Schema {
	s, err := NewSchema(params)
	if err != nil {
		panic(err)
	}
	return s
}

// Segment returns the named segment.
func (s Schema) Segment(name string) (Segment, bool) {
	for _, seg := range s.Segments {
		if seg.Name == name {
			return seg, true
		}
	}
	return Segment{}, false
}

// Dim returns the absolute dimension of position pos inside segment name.
// It panics on an unknown segment or out-of-range position.
func (s Schema) Dim(name string, pos int) int {
	seg, ok := s.Segment(name)
	if !ok || pos < 0 || pos >= seg.Length {
		panic(fmt.Sprintf("embedding: no dimension %s[%d]", name, pos))
	}
	return seg.Offset + pos
}

// DistanceDim returns the dimension holding the proximity to kind.
func (s Schema) DistanceDim(kind core.POIKind) int {
	for i, k := range core.POIKinds {
		if k == kind {
			return s.Dim(SegDistance, i)
		}
	}
	panic(fmt.Sprintf("embedding: unknown poi kind %q", kind))
}

// CoverageDim returns the dimension holding buffer coverage of kind.
func (s Schema) CoverageDim(kind core.CoverKind) int {
	for i, k := range core.CoverKinds {
		if k == kind {
			return s.Dim(SegCoverage, i)
		}
	}
	panic(fmt.Sprintf("embedding: unknown cover kind %q", kind))
}

// Fingerprint hashes the layout and every constant. Two schemas with equal
// fingerprints produce identical vectors for identical parcels.
func (s Schema) Fingerprint() string {
	parts := [][]byte{[]byte(s.Version), binary.BigEndian.AppendUint32(nil, uint32(s.Dimensions))}
	for _, seg := range s.Segments {
		parts = append(parts,
			[]byte(seg.Name),
			binary.BigEndian.AppendUint32(nil, uint32(seg.Offset)),
			binary.BigEndian.AppendUint32(nil, uint32(seg.Length)))
	}
	for _, v := range []float64{
		s.Params.MaxDistanceM, s.Params.MinAreaM2, s.Params.MaxAreaM2,
		s.Params.MaxFootprintRatio, s.Params.MaxHeightM, s.Params.MaxFloorAreaRatio, s.Params.MaxGreenRatio,
	} {
		parts = append(parts, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
	}
	for _, k := range core.POIKinds {
		parts = append(parts, []byte(k))
	}
	for _, k := range core.CoverKinds {
		parts = append(parts, []byte(k))
	}
	for _, p := range core.Purposes {
		parts = append(parts, []byte(p))
	}
	return core.Fingerprint(parts...)
}

// CheckCompatible fails with ErrConfiguration unless an artifact built with
// the given version and fingerprint can be queried with this schema.
func (s Schema) CheckCompatible(version, fingerprint string) error {
	if version != s.Version {
		return fmt.Errorf("%w: %w: artifact schema %s, runtime schema %s",
			core.ErrConfiguration, ErrSchemaMismatch, version, s.Version)
	}
	if fp := s.Fingerprint(); fingerprint != fp {
		return fmt.Errorf("%w: %w: artifact fingerprint %s, runtime fingerprint %s",
			core.ErrConfiguration, ErrSchemaMismatch, fingerprint, fp)
	}
	return nil
}
