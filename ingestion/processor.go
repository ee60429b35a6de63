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


package ingestion

import (
	"context"
	"log/slog"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/labels"
)

// processor is an internal interface for one step applied to a batch of
// validated parcels before they are stored.
type processor interface {
	// process modifies the parcels in place.
	process(ctx context.Context, batch []*core.Parcel) error
}

// labelProcessor merges labels from an external source.
type labelProcessor struct {
	source labels.Source
	logger *slog.Logger
}

var _ processor = (*labelProcessor)(nil)

func (lp *labelProcessor) process(ctx context.Context, batch []*core.Parcel) error {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}
	found, err := lp.source.Labels(ctx, ids)
	if err != nil {
		// Labels are optional; parcels are stored with what they carry.
		lp.logger.Warn("label lookup failed", "parcels", len(batch), "err", err)
		return nil
	}
	applied := 0
	for _, p := range batch {
		if l, ok := found[p.ID]; ok && labels.Apply(p, l) {
			applied++
		}
	}
	lp.logger.Debug("labels applied", "parcels", len(batch), "found", len(found), "applied", applied)
	return nil
}

// enrichProcessor expands zoning purposes and computes scores and buckets.
type enrichProcessor struct {
	scorer   *features.Scorer
	purposes filter.PurposeTable
}

var _ processor = (*enrichProcessor)(nil)

func (ep *enrichProcessor) process(ctx context.Context, batch []*core.Parcel) error {
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		ep.purposes.Expand(p.Zoning)
		ep.scorer.Enrich(p)
	}
	return nil
}
