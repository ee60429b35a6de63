package core

// QuietnessBucket is the categorical form of the quietness score.
type QuietnessBucket string

const (
	VeryQuiet       QuietnessBucket = "very_quiet"
	Quiet           QuietnessBucket = "quiet"
	ModeratelyQuiet QuietnessBucket = "moderate"
	Loud            QuietnessBucket = "loud"
)

// NatureBucket is the categorical form of the nature score.
type NatureBucket string

const (
	VeryGreen      NatureBucket = "very_green"
	Green          NatureBucket = "green"
	ModerateNature NatureBucket = "moderate"
	Urban          NatureBucket = "urban"
)

// AccessibilityBucket is the categorical form of the accessibility score.
type AccessibilityBucket string

const (
	AccessExcellent AccessibilityBucket = "excellent"
	AccessGood      AccessibilityBucket = "good"
	AccessModerate  AccessibilityBucket = "moderate"
	AccessLimited   AccessibilityBucket = "limited"
)

// SizeBucket is the categorical form of the parcel area.
type SizeBucket string

const (
	SizeSmall     SizeBucket = "small"
	SizeMedium    SizeBucket = "medium"
	SizeLarge     SizeBucket = "large"
	SizeVeryLarge SizeBucket = "very_large"
)

// QualityCategory groups the four independent buckets derived from a parcel's
// scores and area.
type QualityCategory struct {
	Quietness     QuietnessBucket     `json:"quietness,omitempty" msgpack:"quietness"`
	Nature        NatureBucket        `json:"nature,omitempty" msgpack:"nature"`
	Accessibility AccessibilityBucket `json:"accessibility,omitempty" msgpack:"accessibility"`
	Size          SizeBucket          `json:"size,omitempty" msgpack:"size"`
}

// IsZero reports whether no bucket has been assigned.
func (c QualityCategory) IsZero() bool {
	return c == QualityCategory{}
}
