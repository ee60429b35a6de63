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


// Package dzialka is a hybrid query engine for land parcels.
//
// Parcels are ingested into a BadgerDB store, enriched with quietness,
// nature and accessibility scores, and periodically rebuilt into an
// immutable index generation: a spatial KD-tree plus a cosine similarity
// index over fixed-layout feature embeddings. Queries combine hard filters
// (location, area, zoning, ownership, quality buckets) with soft
// preference weights and return a deterministic ranking.
//
// Engine wires every component from a config.Config:
//
//	engine, err := dzialka.Open(ctx, cfg)
//	pipeline, err := engine.NewIngestionPipeline()
//	report, err := pipeline.IngestJSONLines(ctx, r)
//	gen, err := engine.Rebuild(ctx, os.Stderr)
//	resp, err := engine.Search(ctx, &core.PreferenceQuery{...})
//
// A rebuild publishes its generation atomically; queries already running
// finish against the generation they started with.
package dzialka
