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


// Package search answers structured parcel preference queries.
//
// The Encoder validates a core.PreferenceQuery and turns its weights into a
// query vector in the embedding layout, starting every dimension at the
// neutral 0.5 so unmentioned preferences neither help nor hurt. Location,
// area, zoning, ownership and category constraints become hard filters.
//
// The Searcher runs each query through four stages against one generation:
//   - candidate generation: top-k by cosine similarity, oversampled to leave
//     room for filtering
//   - filtering: spatial radius and category constraints drop parcels
//   - scoring: the similarity is the score, broken down per preference
//   - ranking: score descending, then composite score sum, then parcel ID,
//     followed by offset and limit
//
// Fewer matches than the limit is not an error; the response sets
// NarrowingSuggested instead.
package search
