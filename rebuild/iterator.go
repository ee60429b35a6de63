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


package rebuild

import (
	"context"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
)

const (
	// DefaultBatchSize is the default number of parcels to fetch in each batch
	DefaultBatchSize = 1000
)

// ParcelIterator pages through every stored parcel in ID order.
// Each page is fetched with retries, so a transient storage error does not
// abort a long rebuild.
type ParcelIterator struct {
	repo       storage.ParcelRepository
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

// NewParcelIterator creates a new iterator.
// A non-positive batchSize selects DefaultBatchSize.
func NewParcelIterator(repo storage.ParcelRepository, batchSize, maxRetries int, retryDelay time.Duration) *ParcelIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &ParcelIterator{
		repo:       repo,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// ForEach calls fn with consecutive batches until the repository is
// exhausted, fn fails or ctx ends.
func (it *ParcelIterator) ForEach(ctx context.Context, fn func([]*core.Parcel) error) error {
	after := ""
	for {
		var batch []*core.Parcel
		err := RetryWithBackoff(ctx, func() error {
			var err error
			batch, err = it.repo.ListParcels(ctx, after, it.batchSize)
			return err
		}, it.maxRetries, it.retryDelay)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < it.batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}
