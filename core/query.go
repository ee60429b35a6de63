package core

// Preference keys accepted in PreferenceQuery.Weights.
const (
	PrefForest        = "forest"
	PrefWater         = "water"
	PrefSchool        = "school"
	PrefShop          = "shop"
	PrefBusStop       = "bus_stop"
	PrefQuiet         = "quiet"
	PrefNature        = "nature"
	PrefAccessibility = "accessibility"
)

// PreferenceKeys lists every accepted weight key in breakdown order.
var PreferenceKeys = []string{
	PrefForest, PrefWater, PrefSchool, PrefShop, PrefBusStop, PrefQuiet, PrefNature, PrefAccessibility,
}

// Neutral is the weight assumed for every preference the user left unset.
const Neutral = 0.5

// Query limits.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// LatLon is a WGS84 coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location restricts a query to a named gmina, a circle around a point, or both.
type Location struct {
	Gmina   string  `json:"gmina,omitempty"`
	Point   *LatLon `json:"point,omitempty"`
	RadiusM float64 `json:"radius_m,omitempty"`
}

// AreaRange bounds parcel area in square metres. A nil bound is open.
// Supplied bounds must be positive.
type AreaRange struct {
	MinM2 *float64 `json:"min_m2,omitempty"`
	MaxM2 *float64 `json:"max_m2,omitempty"`
}

// AreaBetween returns the closed range [minM2, maxM2].
func AreaBetween(minM2, maxM2 float64) *AreaRange {
	return &AreaRange{MinM2: &minM2, MaxM2: &maxM2}
}

// AreaAtLeast returns a range with only a lower bound.
func AreaAtLeast(minM2 float64) *AreaRange {
	return &AreaRange{MinM2: &minM2}
}

// AreaAtMost returns a range with only an upper bound.
func AreaAtMost(maxM2 float64) *AreaRange {
	return &AreaRange{MaxM2: &maxM2}
}

// Contains reports whether areaM2 lies within the range, bounds inclusive.
func (a *AreaRange) Contains(areaM2 float64) bool {
	if a == nil {
		return true
	}
	if a.MinM2 != nil && areaM2 < *a.MinM2 {
		return false
	}
	return a.MaxM2 == nil || areaM2 <= *a.MaxM2
}

// CategoryConstraints lists acceptable buckets per quality axis.
// An empty list accepts every bucket.
type CategoryConstraints struct {
	Quietness     []QuietnessBucket     `json:"quietness,omitempty"`
	Nature        []NatureBucket        `json:"nature,omitempty"`
	Accessibility []AccessibilityBucket `json:"accessibility,omitempty"`
	Size          []SizeBucket          `json:"size,omitempty"`
}

// PreferenceQuery is a structured search request.
type PreferenceQuery struct {
	Location      *Location           `json:"location,omitempty"`
	Area          *AreaRange          `json:"area,omitempty"`
	ZoningPurpose string              `json:"zoning_purpose,omitempty"`
	ZoningSymbols []string            `json:"zoning_symbols,omitempty"`
	Ownership     []OwnershipType     `json:"ownership,omitempty"`
	Categories    CategoryConstraints `json:"categories,omitempty"`
	BuildableOnly bool                `json:"buildable_only,omitempty"`
	Weights       map[string]float64  `json:"weights,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        int                 `json:"offset,omitempty"`
}

// Weight returns the weight for key, or Neutral when unset.
func (q *PreferenceQuery) Weight(key string) float64 {
	if w, ok := q.Weights[key]; ok {
		return w
	}
	return Neutral
}

// RankedResult is one parcel in a query response.
type RankedResult struct {
	ParcelID        string             `json:"parcel_id"`
	Rank            int                `json:"rank"`
	SimilarityScore float64            `json:"similarity_score"`
	ScoreBreakdown  map[string]float64 `json:"score_breakdown"`
	MatchedFilters  []string           `json:"matched_filters"`
}

// QueryResponse is the ranked answer to a PreferenceQuery.
type QueryResponse struct {
	TotalCandidates    int            `json:"total_candidates"`
	Results            []RankedResult `json:"results"`
	NarrowingSuggested bool           `json:"narrowing_suggested"`
	SnapshotID         string         `json:"snapshot_id"`
	SchemaVersion      string         `json:"schema_version"`
}
