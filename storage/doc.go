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


// Package storage provides the persistence abstraction for ingested parcels.
//
// Ingestion writes validated, enriched parcels through a ParcelRepository;
// a rebuild reads them back in ID-ordered batches to build the next index
// generation. The SnapshotRepository remembers which generation was last
// published so a restarted server can report or reload it.
//
// # Usage
//
// Open a BadgerDB backend and create the repositories over it:
//
//	backend, err := badger.OpenBackend("/var/lib/dzialka", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	parcels := badger.NewParcelRepository(backend)
//	snapshots := badger.NewSnapshotRepository(backend)
//
// Use in tests with in-memory storage:
//
//	parcels, snapshots, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use.
//
// # Context Support
//
// Repository methods accept context.Context. Long scans (ForEach) stop
// between batches once the context is done.
package storage
