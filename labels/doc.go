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


// Package labels attaches categorical labels produced outside the engine to
// parcels during ingestion.
//
// A land registry graph typically knows who owns a parcel and which local plan
// designation covers it while the geometric feature extraction does not. A
// Source looks those labels up by parcel ID; Apply merges them into a parcel
// without overwriting values the input already carries.
//
// The neo4j subpackage reads labels from a Neo4j graph. Static serves fixed
// labels from memory.
package labels
