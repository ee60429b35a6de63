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


// Package index builds, publishes and persists index generations.
//
// A Generation bundles the enriched parcels with the spatial and similarity
// indices built from them. Builder.Build produces a complete generation off
// to the side; Handle.Publish then swaps it in with a single atomic pointer
// store, so a query that called Handle.Current keeps reading the generation
// it started with even while a newer one is being published.
//
// Export and Load move a generation to and from a msgpack artifact. The
// artifact header records the embedding schema version, its fingerprint and
// the snapshot ID; Load refuses an artifact whose schema does not match the
// runtime schema.
package index
