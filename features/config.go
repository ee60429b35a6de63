package features

import (
	"fmt"
	"slices"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Step awards Points when the input is strictly below Below.
type Step struct {
	Below  float64 `toml:"below"`
	Points float64 `toml:"points"`
}

// StepFunction maps a value onto points through ascending thresholds.
// The first step whose Below exceeds the value wins; otherwise Otherwise applies.
type StepFunction struct {
	Steps     []Step  `toml:"steps"`
	Otherwise float64 `toml:"otherwise"`
}

// Eval returns the points for v.
func (f StepFunction) Eval(v float64) float64 {
	for _, s := range f.Steps {
		if v < s.Below {
			return s.Points
		}
	}
	return f.Otherwise
}

func (f StepFunction) validate(name string) error {
	if !slices.IsSortedFunc(f.Steps, func(a, b Step) int {
		switch {
		case a.Below < b.Below:
			return -1
		case a.Below > b.Below:
			return 1
		}
		return 0
	}) {
		return fmt.Errorf("%w: %s thresholds must ascend", core.ErrConfiguration, name)
	}
	return nil
}

// QuietnessConfig defines penalties subtracted from Base.
type QuietnessConfig struct {
	Base            float64      `toml:"base"`
	Industrial      StepFunction `toml:"industrial"`
	MainRoad        StepFunction `toml:"main_road"`
	BuildingDensity StepFunction `toml:"building_density"`
}

// NatureConfig defines nature bonuses.
type NatureConfig struct {
	Forest         StepFunction `toml:"forest"`
	Water          StepFunction `toml:"water"`
	ForestCoverage float64      `toml:"forest_coverage_factor"`
}

// AccessibilityConfig defines accessibility bonuses.
type AccessibilityConfig struct {
	BusStop  StepFunction `toml:"bus_stop"`
	School   StepFunction `toml:"school"`
	MainRoad StepFunction `toml:"main_road"`
}

// BucketConfig holds descending lower bounds for the top three buckets of
// each score axis; scores below the last bound fall into the lowest bucket.
// Size holds ascending upper bounds in m² for small, medium and large.
type BucketConfig struct {
	Quietness     [3]float64 `toml:"quietness"`
	Nature        [3]float64 `toml:"nature"`
	Accessibility [3]float64 `toml:"accessibility"`
	Size          [3]float64 `toml:"size"`
}

// Config holds every tunable of the feature pipeline.
type Config struct {
	MaxDistanceM  float64             `toml:"max_distance_m"`
	Quietness     QuietnessConfig     `toml:"quietness"`
	Nature        NatureConfig        `toml:"nature"`
	Accessibility AccessibilityConfig `toml:"accessibility"`
	Buckets       BucketConfig        `toml:"buckets"`
}

// DefaultConfig returns the reference scoring tables.
func DefaultConfig() Config {
	return Config{
		MaxDistanceM: 10000,
		Quietness: QuietnessConfig{
			Base: 100,
			Industrial: StepFunction{
				Steps: []Step{{Below: 500, Points: 40}, {Below: 1000, Points: 20}},
			},
			MainRoad: StepFunction{
				Steps: []Step{{Below: 100, Points: 30}, {Below: 300, Points: 15}},
			},
			BuildingDensity: StepFunction{
				Steps:     []Step{{Below: 0.05, Points: 0}, {Below: 0.15, Points: 10}, {Below: 0.30, Points: 20}},
				Otherwise: 30,
			},
		},
		Nature: NatureConfig{
			Forest: StepFunction{
				Steps: []Step{{Below: 100, Points: 30}, {Below: 300, Points: 20}, {Below: 1000, Points: 10}},
			},
			Water: StepFunction{
				Steps: []Step{{Below: 200, Points: 20}, {Below: 500, Points: 10}, {Below: 1000, Points: 5}},
			},
			ForestCoverage: 40,
		},
		Accessibility: AccessibilityConfig{
			BusStop: StepFunction{
				Steps: []Step{{Below: 300, Points: 40}, {Below: 600, Points: 25}, {Below: 1000, Points: 10}},
			},
			School: StepFunction{
				Steps: []Step{{Below: 1000, Points: 30}, {Below: 2000, Points: 20}, {Below: 5000, Points: 10}},
			},
			MainRoad: StepFunction{
				Steps: []Step{{Below: 500, Points: 30}, {Below: 1500, Points: 20}, {Below: 3000, Points: 10}},
			},
		},
		Buckets: BucketConfig{
			Quietness:     [3]float64{80, 60, 40},
			Nature:        [3]float64{70, 50, 30},
			Accessibility: [3]float64{70, 50, 30},
			Size:          [3]float64{800, 1500, 3000},
		},
	}
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if c.MaxDistanceM <= 0 {
		return fmt.Errorf("%w: max_distance_m must be positive", core.ErrConfiguration)
	}
	for name, f := range map[string]StepFunction{
		"quietness.industrial":       c.Quietness.Industrial,
		"quietness.main_road":        c.Quietness.MainRoad,
		"quietness.building_density": c.Quietness.BuildingDensity,
		"nature.forest":              c.Nature.Forest,
		"nature.water":               c.Nature.Water,
		"accessibility.bus_stop":     c.Accessibility.BusStop,
		"accessibility.school":       c.Accessibility.School,
		"accessibility.main_road":    c.Accessibility.MainRoad,
	} {
		if err := f.validate(name); err != nil {
			return err
		}
	}
	for name, b := range map[string][3]float64{
		"quietness":     c.Buckets.Quietness,
		"nature":        c.Buckets.Nature,
		"accessibility": c.Buckets.Accessibility,
	} {
		if !(b[0] > b[1] && b[1] > b[2]) {
			return fmt.Errorf("%w: buckets.%s bounds must descend", core.ErrConfiguration, name)
		}
	}
	s := c.Buckets.Size
	if !(s[0] > 0 && s[0] < s[1] && s[1] < s[2]) {
		return fmt.Errorf("%w: buckets.size bounds must ascend", core.ErrConfiguration)
	}
	return nil
}
