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


package ingestion

import "errors"

var (
	// ErrParcelRepositoryRequired is returned when a parcel repository is not provided.
	ErrParcelRepositoryRequired = errors.New("parcel repository required")

	// ErrScorerRequired is returned when a feature scorer is not provided.
	ErrScorerRequired = errors.New("feature scorer required")

	// ErrDuplicateParcel is returned for a second record with an ID already seen in the batch.
	ErrDuplicateParcel = errors.New("duplicate parcel id in batch")

	// ErrMalformedRecord is returned for an input line that is not a parcel record.
	ErrMalformedRecord = errors.New("malformed parcel record")
)
