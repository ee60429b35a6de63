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


package index

import "errors"

var (
	// ErrScorerRequired is returned when a feature scorer is not provided.
	ErrScorerRequired = errors.New("feature scorer required")

	// ErrEmbedderRequired is returned when an embedding builder is not provided.
	ErrEmbedderRequired = errors.New("embedding builder required")

	// ErrDuplicateParcel indicates a later parcel reused an ID already accepted in the batch.
	ErrDuplicateParcel = errors.New("duplicate parcel id")

	// ErrNilGeneration is returned when publishing a nil generation.
	ErrNilGeneration = errors.New("generation cannot be nil")

	// ErrUnsupportedArtifact indicates an artifact written by an unknown format version.
	ErrUnsupportedArtifact = errors.New("unsupported index artifact format")
)
