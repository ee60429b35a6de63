package index

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
)

// Builder produces generations from parcel batches.
// A Builder is safe for concurrent use; each Build works on its own copies.
type Builder struct {
	scorer   *features.Scorer
	embedder *embedding.Builder
	purposes filter.PurposeTable
	simCfg   similarity.Config
	workers  int
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithSimilarityConfig sets the HNSW parameters.
// Default is similarity.DefaultConfig().
func WithSimilarityConfig(cfg similarity.Config) Option {
	return func(b *Builder) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		b.simCfg = cfg
		return nil
	}
}

// WithPurposeTable sets the zoning symbol table used to fill missing purposes.
// Default is filter.DefaultPurposeTable().
func WithPurposeTable(t filter.PurposeTable) Option {
	return func(b *Builder) error {
		if t != nil {
			b.purposes = t
		}
		return nil
	}
}

// WithWorkers sets the number of goroutines used for embedding construction.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			n = 1
		}
		b.workers = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a generation builder.
func NewBuilder(scorer *features.Scorer, embedder *embedding.Builder, opts ...Option) (*Builder, error) {
	if scorer == nil {
		return nil, ErrScorerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &Builder{
		scorer:   scorer,
		embedder: embedder,
		purposes: filter.DefaultPurposeTable(),
		simCfg:   similarity.DefaultConfig(),
		workers:  runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "index")
	return b, nil
}

// Schema returns the embedding schema generations are built with.
func (b *Builder) Schema() embedding.Schema {
	return b.embedder.Schema()
}

// Build validates, enriches and embeds parcels, then indexes the survivors.
// The input is not modified. Invalid parcels, later duplicates of an ID and
// parcels with no usable features are left out and listed in
// Generation.Rejections; they never fail the build.
//
// Building twice from the same parcels yields generations that answer every
// query identically; only SnapshotID and BuiltAt differ.
func (b *Builder) Build(ctx context.Context, parcels []*core.Parcel) (*Generation, error) {
	start := time.Now()
	var rejections []core.Rejection
	reject := func(id string, err error) {
		b.logger.Warn("parcel rejected", "id", id, "err", err)
		rejections = append(rejections, core.Rejection{ID: id, Reason: err.Error()})
	}

	accepted := make([]*core.Parcel, 0, len(parcels))
	seen := make(map[string]bool, len(parcels))
	for _, p := range parcels {
		if err := core.ValidateParcel(p); err != nil {
			id := ""
			if p != nil {
				id = p.ID
			}
			reject(id, err)
			continue
		}
		if seen[p.ID] {
			reject(p.ID, ErrDuplicateParcel)
			continue
		}
		seen[p.ID] = true
		c := p.Clone()
		b.purposes.Expand(c.Zoning)
		accepted = append(accepted, c)
	}

	if err := b.scorer.EnrichAll(ctx, accepted); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(accepted))
	errs := make([]error, len(accepted))
	err := features.Shard(ctx, len(accepted), b.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			vectors[i], errs[i] = b.embedder.Build(accepted[i])
		}
	})
	if err != nil {
		return nil, err
	}

	kept := accepted[:0]
	entries := make([]similarity.Entry, 0, len(accepted))
	for i, p := range accepted {
		if errs[i] != nil {
			reject(p.ID, errs[i])
			continue
		}
		p.Embedding = vectors[i]
		kept = append(kept, p)
		entries = append(entries, similarity.Entry{ID: p.ID, Vector: vectors[i]})
	}

	sim, err := similarity.Build(ctx, b.embedder.Schema().Dimensions, entries, b.simCfg)
	if err != nil {
		return nil, err
	}

	gen := newGeneration(b.embedder.Schema(), kept, sim)
	gen.SnapshotID = uuid.NewString()
	gen.BuiltAt = time.Now().UTC()
	gen.ContentFingerprint = contentFingerprint(gen)
	gen.rejections = rejections

	b.logger.Info("generation built",
		"snapshot", gen.SnapshotID,
		"parcels", gen.Len(),
		"rejected", len(rejections),
		"approximate", sim.Approximate(),
		"elapsed", time.Since(start))
	return gen, nil
}

// contentFingerprint hashes the parcel IDs and embeddings in ID order.
func contentFingerprint(g *Generation) string {
	parts := make([][]byte, 0, 2*len(g.ids)+1)
	parts = append(parts, []byte(g.SchemaFingerprint))
	for _, id := range g.ids {
		p := g.parcels[id]
		buf := make([]byte, 0, 4*len(p.Embedding))
		for _, x := range p.Embedding {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(x))
		}
		parts = append(parts, []byte(id), buf)
	}
	return core.Fingerprint(parts...)
}
