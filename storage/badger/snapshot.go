package badger

import (
	"context"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
	"github.com/dgraph-io/badger/v4"
)

// SnapshotRepository implements storage.SnapshotRepository for BadgerDB.
type SnapshotRepository struct {
	backend *Backend
}

var _ storage.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(backend *Backend) *SnapshotRepository {
	return &SnapshotRepository{
		backend: backend,
	}
}

// SaveSnapshot replaces the current snapshot record.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *core.Snapshot) error {
	value, err := storage.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(snapshotKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadSnapshot retrieves the current snapshot record.
// Returns nil, nil if no snapshot exists.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (*core.Snapshot, error) {
	var snapshot *core.Snapshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(snapshotKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			snapshot, unmarshalErr = storage.UnmarshalSnapshot(val)
			return unmarshalErr
		})
	}, false)

	return snapshot, err
}
