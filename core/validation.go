// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"math"
)

// ValidateParcel validates a Parcel according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Geometry must have an outer ring with at least 3 points
//   - AreaM2 must be positive
//   - Distances must be finite and non-negative
//   - BufferCoverage fractions must lie in [0,1]
//   - Scores, when supplied, must lie in [0,100]
//   - Either Scores or at least one raw feature must be present
//
// NOT validated (populated by the pipeline):
//   - Centroid (derived from Geometry when zero)
//   - Category
//   - Embedding
func ValidateParcel(p *Parcel) error {
	if p == nil {
		return fmt.Errorf("%w: parcel is nil", ErrInvalidParcel)
	}

	if p.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidParcel, ErrEmptyID)
	}

	if p.Geometry.IsEmpty() {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParcel, p.ID, ErrMissingGeometry)
	}

	if !(p.AreaM2 > 0) || math.IsInf(p.AreaM2, 0) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParcel, p.ID, ErrNonPositiveArea)
	}

	for kind, d := range p.Distances {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: %s: %w: %s=%v", ErrInvalidParcel, p.ID, ErrInvalidDistance, kind, d)
		}
	}

	for kind, c := range p.BufferCoverage {
		if c < 0 || c > 1 || math.IsNaN(c) {
			return fmt.Errorf("%w: %s: %w: %s=%v", ErrInvalidParcel, p.ID, ErrInvalidCoverage, kind, c)
		}
	}

	if p.Scores != nil {
		if err := ValidateScores(*p.Scores); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidParcel, p.ID, err)
		}
	} else if !p.HasRawFeatures() {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParcel, p.ID, ErrMissingScores)
	}

	return nil
}

// ValidateScores checks that every composite score lies in [0,100].
func ValidateScores(s Scores) error {
	for name, v := range map[string]int{
		"quietness":     s.Quietness,
		"nature":        s.Nature,
		"accessibility": s.Accessibility,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s=%d", ErrScoreOutOfRange, name, v)
		}
	}
	return nil
}
