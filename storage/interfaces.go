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


package storage

import (
	"context"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Repository is the base interface for all storage operations.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ParcelRepository persists ingested parcels between index rebuilds.
type ParcelRepository interface {
	Repository
	// AddParcels inserts parcels, replacing any stored parcel with the same ID.
	// The gmina index is kept in step when a parcel moves between gminas.
	AddParcels(ctx context.Context, parcels ...*core.Parcel) error

	// DeleteParcels removes parcels and their index entries.
	// Returns ErrNotFound if any parcel doesn't exist.
	DeleteParcels(ctx context.Context, ids ...string) error

	// GetParcel retrieves a single parcel by ID.
	// Returns ErrNotFound if the parcel doesn't exist.
	GetParcel(ctx context.Context, id string) (*core.Parcel, error)

	// GetParcels retrieves multiple parcels by their IDs.
	// Returns only the parcels that exist (no error for missing parcels).
	GetParcels(ctx context.Context, ids ...string) ([]*core.Parcel, error)

	// GetParcelIDsByGmina returns the IDs of parcels in a gmina, ascending.
	// Gmina names match case-insensitively.
	GetParcelIDsByGmina(ctx context.Context, gmina string) ([]string, error)

	// ListParcels returns up to limit parcels with IDs strictly greater than
	// afterID, in ID order. An empty afterID starts from the beginning.
	ListParcels(ctx context.Context, afterID string, limit int) ([]*core.Parcel, error)

	// ForEach calls fn with consecutive batches of at most batchSize parcels
	// in ID order. Iteration stops at the first error fn returns.
	ForEach(ctx context.Context, batchSize int, fn func([]*core.Parcel) error) error

	// Count returns the number of stored parcels.
	Count(ctx context.Context) (int, error)
}

// SnapshotRepository records which index generation was last published.
type SnapshotRepository interface {
	// SaveSnapshot replaces the current snapshot record.
	SaveSnapshot(ctx context.Context, snapshot *core.Snapshot) error

	// LoadSnapshot returns the current snapshot record.
	// Returns nil, nil if no generation was ever published.
	LoadSnapshot(ctx context.Context) (*core.Snapshot, error)
}
