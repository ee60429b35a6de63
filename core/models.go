package core

import (
	"encoding/hex"
	"maps"
	"slices"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// POIKind names a class of point of interest a parcel's distance is measured to.
type POIKind string

const (
	POIForest     POIKind = "forest"
	POIWater      POIKind = "water"
	POISchool     POIKind = "school"
	POIShop       POIKind = "shop"
	POIHospital   POIKind = "hospital"
	POIBusStop    POIKind = "bus_stop"
	POIMainRoad   POIKind = "main_road"
	POIIndustrial POIKind = "industrial"
)

// POIKinds lists every distance feature in embedding order.
var POIKinds = []POIKind{
	POIForest, POIWater, POISchool, POIShop, POIHospital, POIBusStop, POIMainRoad, POIIndustrial,
}

// CoverKind names a land-cover class measured within the 500 m buffer.
type CoverKind string

const (
	CoverForest     CoverKind = "forest"
	CoverWater      CoverKind = "water"
	CoverBuildings  CoverKind = "buildings"
	CoverFields     CoverKind = "fields"
	CoverMeadows    CoverKind = "meadows"
	CoverIndustrial CoverKind = "industrial"
)

// CoverKinds lists every buffer coverage feature in embedding order.
var CoverKinds = []CoverKind{
	CoverForest, CoverWater, CoverBuildings, CoverFields, CoverMeadows, CoverIndustrial,
}

// OwnershipType classifies who holds title to a parcel.
type OwnershipType string

const (
	OwnershipUnknown   OwnershipType = "unknown"
	OwnershipPrivate   OwnershipType = "private"
	OwnershipPublic    OwnershipType = "public"
	OwnershipMunicipal OwnershipType = "municipal"
	OwnershipState     OwnershipType = "state"
	OwnershipChurch    OwnershipType = "church"
)

// ParseOwnership maps free-form labels onto an OwnershipType.
// Unrecognized values become OwnershipUnknown.
func ParseOwnership(s string) OwnershipType {
	switch o := OwnershipType(strings.ToLower(strings.TrimSpace(s))); o {
	case OwnershipPrivate, OwnershipPublic, OwnershipMunicipal, OwnershipState, OwnershipChurch:
		return o
	default:
		return OwnershipUnknown
	}
}

// Administrative locates a parcel in the administrative hierarchy.
type Administrative struct {
	Gmina    string `json:"gmina" msgpack:"gmina"`
	Powiat   string `json:"powiat,omitempty" msgpack:"powiat"`
	Locality string `json:"locality,omitempty" msgpack:"locality"`
}

// Zoning is the local land-use plan designation covering a parcel.
// Ratios are fractions in [0,1]; MaxFloorAreaRatio may exceed 1.
type Zoning struct {
	Symbol            string   `json:"symbol" msgpack:"symbol"`
	Purposes          []string `json:"purposes,omitempty" msgpack:"purposes"`
	MaxFootprintRatio float64  `json:"max_footprint_ratio,omitempty" msgpack:"max_footprint_ratio"`
	MaxHeightM        float64  `json:"max_height_m,omitempty" msgpack:"max_height_m"`
	MaxFloorAreaRatio float64  `json:"max_floor_area_ratio,omitempty" msgpack:"max_floor_area_ratio"`
	MinGreenRatio     float64  `json:"min_green_ratio,omitempty" msgpack:"min_green_ratio"`
}

// Scores holds the three composite scores, each in [0,100].
type Scores struct {
	Quietness     int `json:"quietness" msgpack:"quietness"`
	Nature        int `json:"nature" msgpack:"nature"`
	Accessibility int `json:"accessibility" msgpack:"accessibility"`
}

// Sum is used as a deterministic secondary ranking key.
func (s Scores) Sum() int {
	return s.Quietness + s.Nature + s.Accessibility
}

// Parcel is one cadastral land unit with its derived features.
//
// Geometry and Centroid are in projected EPSG:2180 metres. Distances and
// BufferCoverage omit unknown values rather than storing sentinels.
// ScoresDerived marks Scores computed by the scorer, as opposed to
// scores supplied with the input record.
type Parcel struct {
	ID             string                `json:"parcel_id" msgpack:"id"`
	Geometry       Polygon               `json:"geometry" msgpack:"geometry"`
	Centroid       Point                 `json:"centroid" msgpack:"centroid"`
	AreaM2         float64               `json:"area_m2" msgpack:"area_m2"`
	Administrative Administrative        `json:"administrative" msgpack:"administrative"`
	Ownership      OwnershipType         `json:"ownership,omitempty" msgpack:"ownership"`
	Zoning         *Zoning               `json:"zoning,omitempty" msgpack:"zoning"`
	Distances      map[POIKind]float64   `json:"distances,omitempty" msgpack:"distances"`
	BufferCoverage map[CoverKind]float64 `json:"buffer_coverage,omitempty" msgpack:"buffer_coverage"`
	Scores         *Scores               `json:"scores,omitempty" msgpack:"scores"`
	ScoresDerived  bool                  `json:"-" msgpack:"scores_derived"`
	Category       QualityCategory       `json:"category" msgpack:"category"`
	Embedding      []float32             `json:"-" msgpack:"embedding"`
}

// Distance returns the distance to the nearest POI of the given kind.
func (p *Parcel) Distance(kind POIKind) (float64, bool) {
	d, ok := p.Distances[kind]
	return d, ok
}

// Coverage returns the buffer coverage fraction for the given kind.
func (p *Parcel) Coverage(kind CoverKind) (float64, bool) {
	c, ok := p.BufferCoverage[kind]
	return c, ok
}

// HasRawFeatures reports whether at least one distance or coverage value is known.
func (p *Parcel) HasRawFeatures() bool {
	return len(p.Distances) > 0 || len(p.BufferCoverage) > 0
}

// buildablePurposes are permitted uses that allow new dwellings or services.
var buildablePurposes = []string{
	PurposeResidentialSingle, PurposeResidentialMulti, PurposeServices, PurposeMixedUse,
}

// IsBuildable reports whether the parcel's zoning permits building.
// Unzoned parcels are not buildable.
func (p *Parcel) IsBuildable() bool {
	if p.Zoning == nil {
		return false
	}
	for _, purpose := range p.Zoning.Purposes {
		if slices.Contains(buildablePurposes, purpose) {
			return true
		}
	}
	return false
}

// Permitted-use profiles referenced by zoning purposes.
const (
	PurposeResidentialSingle = "residential_single_family"
	PurposeResidentialMulti  = "residential_multi_family"
	PurposeServices          = "services"
	PurposeMixedUse          = "mixed_use"
	PurposeAgricultural      = "agricultural"
	PurposeForest            = "forest"
	PurposeIndustrial        = "industrial"
)

// Purposes lists every known zoning purpose in embedding order.
var Purposes = []string{
	PurposeResidentialSingle, PurposeResidentialMulti, PurposeServices, PurposeMixedUse,
	PurposeAgricultural, PurposeForest, PurposeIndustrial,
}

// IsKnownPurpose reports whether purpose is one of Purposes.
func IsKnownPurpose(purpose string) bool {
	return slices.Contains(Purposes, purpose)
}

// Fingerprint hashes arbitrary parts with BLAKE2b-128 and returns the hex digest.
// Identical inputs always produce identical fingerprints.
func Fingerprint(parts ...[]byte) string {
	h, _ := blake2b.New(16, nil)
	for _, part := range parts {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a copy that shares no mutable state with p.
func (p *Parcel) Clone() *Parcel {
	c := *p
	c.Geometry = Polygon{Rings: make([][]Point, len(p.Geometry.Rings))}
	for i, r := range p.Geometry.Rings {
		c.Geometry.Rings[i] = slices.Clone(r)
	}
	if p.Zoning != nil {
		z := *p.Zoning
		z.Purposes = slices.Clone(p.Zoning.Purposes)
		c.Zoning = &z
	}
	c.Distances = maps.Clone(p.Distances)
	c.BufferCoverage = maps.Clone(p.BufferCoverage)
	if p.Scores != nil {
		s := *p.Scores
		c.Scores = &s
	}
	c.Embedding = slices.Clone(p.Embedding)
	return &c
}

// Rejection records why a parcel was not accepted.
type Rejection struct {
	ID     string `json:"parcel_id"`
	Reason string `json:"reason"`
}
