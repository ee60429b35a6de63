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


package embedding

import "errors"

var (
	// ErrNoFeatures indicates a parcel has no known feature to embed.
	ErrNoFeatures = errors.New("parcel has no embeddable features")

	// ErrSchemaMismatch indicates an artifact was built with a different schema.
	ErrSchemaMismatch = errors.New("embedding schema mismatch")

	// ErrDimensionMismatch indicates a vector whose length differs from the schema.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
