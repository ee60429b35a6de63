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

import "errors"

// Query and lifecycle errors shared by every component.
var (
	// ErrConfiguration is fatal: bad config or an index built with a different embedding schema.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidRequest indicates a malformed or out-of-range query.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoCoverage indicates the requested location lies outside the indexed region.
	ErrNoCoverage = errors.New("location not covered by index")

	// ErrIndexUnavailable indicates no index generation is ready. Callers may retry.
	ErrIndexUnavailable = errors.New("index unavailable")
)

// Domain validation errors
var (
	// ErrInvalidParcel indicates a Parcel failed validation.
	ErrInvalidParcel = errors.New("invalid parcel")

	// ErrEmptyID indicates the parcel ID is empty.
	ErrEmptyID = errors.New("parcel id cannot be empty")

	// ErrMissingGeometry indicates the outer ring is missing or has fewer than 3 points.
	ErrMissingGeometry = errors.New("geometry missing")

	// ErrNonPositiveArea indicates area_m2 is absent or not positive.
	ErrNonPositiveArea = errors.New("area_m2 must be positive")

	// ErrMissingScores indicates neither scores nor raw features to compute them are present.
	ErrMissingScores = errors.New("scores missing and not computable")

	// ErrInvalidDistance indicates a negative or non-finite distance.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrInvalidCoverage indicates a buffer coverage fraction outside [0,1].
	ErrInvalidCoverage = errors.New("invalid buffer coverage")

	// ErrScoreOutOfRange indicates a supplied score outside [0,100].
	ErrScoreOutOfRange = errors.New("score out of range")
)

// IsRetryable reports whether a failed query may succeed if retried unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}
