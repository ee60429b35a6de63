package badger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
	"github.com/dgraph-io/badger/v4"
)

// ParcelRepository implements storage.ParcelRepository for BadgerDB.
//
// Parcels are stored under parcel:<id> as msgpack. A secondary index
// parcelg:<gmina>:<id> with an empty value supports gmina lookups.
type ParcelRepository struct {
	backend *Backend
}

var _ storage.ParcelRepository = (*ParcelRepository)(nil)

// NewParcelRepository creates a new ParcelRepository.
func NewParcelRepository(backend *Backend) *ParcelRepository {
	return &ParcelRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *ParcelRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ParcelRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddParcels inserts or replaces parcels.
func (r *ParcelRepository) AddParcels(ctx context.Context, parcels ...*core.Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range parcels {
			if p == nil || p.ID == "" {
				return fmt.Errorf("%w: %w", core.ErrInvalidParcel, core.ErrEmptyID)
			}
			key := makeParcelKey(p.ID)

			// Drop the old gmina entry if the parcel moved
			old, err := r.readParcel(tx, key)
			if err != nil {
				return err
			}
			if old != nil && normalizeGmina(old.Administrative.Gmina) != normalizeGmina(p.Administrative.Gmina) {
				if err := tx.Delete(makeParcelGminaKey(old.Administrative.Gmina, old.ID)); err != nil {
					return err
				}
			}

			value, err := storage.MarshalParcel(p)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := tx.Set(makeParcelGminaKey(p.Administrative.Gmina, p.ID), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteParcels removes parcels by their IDs.
func (r *ParcelRepository) DeleteParcels(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeParcelKey(id)
			p, err := r.readParcel(tx, key)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: parcel %s", storage.ErrNotFound, id)
			}
			if err := tx.Delete(makeParcelGminaKey(p.Administrative.Gmina, id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetParcel retrieves a single parcel by ID.
func (r *ParcelRepository) GetParcel(ctx context.Context, id string) (*core.Parcel, error) {
	var result *core.Parcel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readParcel(tx, makeParcelKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: parcel %s", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetParcels retrieves multiple parcels by their IDs.
func (r *ParcelRepository) GetParcels(ctx context.Context, ids ...string) ([]*core.Parcel, error) {
	var result []*core.Parcel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			p, err := r.readParcel(tx, makeParcelKey(id))
			if err != nil {
				return err
			}
			if p != nil {
				result = append(result, p)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetParcelIDsByGmina returns the IDs of parcels in a gmina.
func (r *ParcelRepository) GetParcelIDsByGmina(ctx context.Context, gmina string) ([]string, error) {
	var ids []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialParcelGminaKey(gmina)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	}, false)
	return ids, err
}

// ListParcels returns up to limit parcels with IDs after afterID.
func (r *ParcelRepository) ListParcels(ctx context.Context, afterID string, limit int) ([]*core.Parcel, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	results := make([]*core.Parcel, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = parcelKeyPrefix()
		opts.PrefetchSize = min(limit, opts.PrefetchSize)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := makeParcelKey(afterID)
		for iter.Seek(start); iter.Valid() && len(results) < limit; iter.Next() {
			item := iter.Item()
			if afterID != "" && bytes.Equal(item.Key(), start) {
				continue
			}
			var p *core.Parcel
			if err := item.Value(func(val []byte) error {
				var err error
				p, err = storage.UnmarshalParcel(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, p)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach calls fn with consecutive batches of parcels in ID order.
// Each batch is read in its own transaction, so writes made by fn are
// visible to later batches.
func (r *ParcelRepository) ForEach(ctx context.Context, batchSize int, fn func([]*core.Parcel) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", storage.ErrInvalidQuery, batchSize)
	}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := r.ListParcels(ctx, after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

// Count returns the number of stored parcels.
func (r *ParcelRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = parcelKeyPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Gminas returns the distinct normalized gmina names that hold parcels.
func (r *ParcelRepository) Gminas(ctx context.Context) ([]string, error) {
	var gminas []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(parcelGminaPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			rest := string(iter.Item().Key()[len(prefix):])
			gmina, _, _ := strings.Cut(rest, ":")
			if gmina != "" {
				gminas = append(gminas, gmina)
			}
		}
		return nil
	}, false)
	slices.Sort(gminas)
	return slices.Compact(gminas), err
}

// readParcel reads a parcel from a transaction.
// Returns nil, nil if the key doesn't exist.
func (r *ParcelRepository) readParcel(tx *badger.Txn, key []byte) (*core.Parcel, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var p *core.Parcel
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		p, unmarshalErr = storage.UnmarshalParcel(val)
		return unmarshalErr
	})
	return p, err
}
