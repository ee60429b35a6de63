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


// Package rebuild builds a new index generation from every stored parcel
// and publishes it.
//
// A Rebuilder reads the parcel repository in ID-ordered batches, retrying
// transient storage failures with exponential backoff, hands the collected
// parcels to an index.Builder, optionally exports the generation artifact,
// publishes it on an index.Handle and records it in the snapshot repository.
// Progress is written to an io.Writer as the batches arrive.
//
// Restore reloads the last recorded artifact so a restarted server can
// answer queries before the next rebuild.
package rebuild
