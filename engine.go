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


package dzialka

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MarcinSar/moja-dzialka-sub000/config"
	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/ingestion"
	"github.com/MarcinSar/moja-dzialka-sub000/labels"
	"github.com/MarcinSar/moja-dzialka-sub000/labels/neo4j"
	"github.com/MarcinSar/moja-dzialka-sub000/metrics"
	"github.com/MarcinSar/moja-dzialka-sub000/rebuild"
	"github.com/MarcinSar/moja-dzialka-sub000/search"
	"github.com/MarcinSar/moja-dzialka-sub000/server"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
	"github.com/MarcinSar/moja-dzialka-sub000/storage/badger"
)

// Engine wires storage, the index handle, the searcher and the batch jobs
// from one Config.
type Engine struct {
	cfg       *config.Config
	backend   *badger.Backend
	parcels   *badger.ParcelRepository
	snapshots *badger.SnapshotRepository
	labels    labels.Source
	purposes  filter.PurposeTable
	scorer    *features.Scorer
	builder   *index.Builder
	handle    *index.Handle
	searcher  *search.Searcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	labels   labels.Source
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithRegistry registers the engine's metrics with reg instead of a
// private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *engineOptions) {
		o.registry = reg
	}
}

// WithLabelSource overrides the label source configured in [labels].
func WithLabelSource(src labels.Source) Option {
	return func(o *engineOptions) {
		o.labels = src
	}
}

// Open validates cfg and opens every component. The handle starts empty;
// call Rebuild or Restore to publish a generation.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	schema, err := embedding.NewSchema(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	scorer, err := features.NewScorer(cfg.Features, features.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	purposes := filter.DefaultPurposeTable()
	builder, err := index.NewBuilder(scorer, embedding.NewBuilder(schema),
		index.WithSimilarityConfig(cfg.Similarity),
		index.WithPurposeTable(purposes),
		index.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	encoder, err := search.NewEncoder(schema, purposes, cfg.Query)
	if err != nil {
		return nil, err
	}

	m := metrics.New(options.registry)
	handle, err := index.NewHandle(index.WithSwapHook(m.OnSwap), index.WithHandleLogger(logger))
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewSearcher(handle,
		search.WithEncoder(encoder),
		search.WithMonitor(m),
		search.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory, badger.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	src := options.labels
	if src == nil && cfg.Labels.Enabled() {
		src, err = neo4j.Open(ctx, neo4j.Config{
			URI:      cfg.Labels.URI,
			Username: cfg.Labels.Username,
			Password: cfg.Labels.Password,
			Database: cfg.Labels.Database,
		}, neo4j.WithBatchSize(cfg.Labels.BatchSize), neo4j.WithLogger(logger))
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Engine{
		cfg:       cfg,
		backend:   backend,
		parcels:   badger.NewParcelRepository(backend),
		snapshots: badger.NewSnapshotRepository(backend),
		labels:    src,
		purposes:  purposes,
		scorer:    scorer,
		builder:   builder,
		handle:    handle,
		searcher:  searcher,
		metrics:   m,
		logger:    logger.With("component", "engine"),
	}, nil
}

// Close releases the label source and the storage backend.
func (e *Engine) Close() error {
	var errs []error
	if e.labels != nil {
		if err := e.labels.Close(context.Background()); err != nil {
			e.logger.Error("error closing label source", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.parcels.Close(); err != nil {
		e.logger.Error("error closing parcel repository", "err", err)
		errs = append(errs, err)
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// ParcelRepository returns the parcel store.
func (e *Engine) ParcelRepository() storage.ParcelRepository {
	return e.parcels
}

// SnapshotRepository returns the store of published generation records.
func (e *Engine) SnapshotRepository() storage.SnapshotRepository {
	return e.snapshots
}

// Handle returns the holder of the live index generation.
func (e *Engine) Handle() *index.Handle {
	return e.handle
}

// Searcher returns the query engine bound to Handle.
func (e *Engine) Searcher() *search.Searcher {
	return e.searcher
}

// Metrics returns the engine's Prometheus collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Search answers q against the published generation.
func (e *Engine) Search(ctx context.Context, q *core.PreferenceQuery) (*core.QueryResponse, error) {
	return e.searcher.Search(ctx, q)
}

// NewIngestionPipeline returns a pipeline writing to the parcel repository.
// Callers must Release it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithPurposeTable(e.purposes),
		ingestion.WithObserver(e.metrics),
		ingestion.WithLogger(e.logger),
	}
	if n := e.cfg.Ingestion.BatchSize; n > 0 {
		base = append(base, ingestion.WithBatchSize(n))
	}
	if n := e.cfg.Ingestion.PoolSize; n > 0 {
		base = append(base, ingestion.WithPoolSize(n))
	}
	if e.labels != nil {
		base = append(base, ingestion.WithLabelSource(e.labels))
	}
	return ingestion.NewPipeline(e.parcels, e.scorer, append(base, opts...)...)
}

// NewRebuilder returns a rebuilder that publishes into the engine's handle.
func (e *Engine) NewRebuilder(progress io.Writer, opts ...rebuild.Option) (*rebuild.Rebuilder, error) {
	cfg := e.cfg.Rebuild
	base := []rebuild.Option{
		rebuild.WithSnapshotRepository(e.snapshots),
		rebuild.WithLogger(e.logger),
	}
	return rebuild.NewRebuilder(e.parcels, e.builder, e.handle, &cfg, progress, append(base, opts...)...)
}

// Rebuild builds and publishes a generation from every stored parcel.
func (e *Engine) Rebuild(ctx context.Context, progress io.Writer) (*index.Generation, error) {
	r, err := e.NewRebuilder(progress)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Restore publishes the last exported generation. When none was exported,
// or the artifact is missing or unreadable, it falls back to a full rebuild.
// An artifact built under a different embedding schema is a configuration
// error: it is returned as is and nothing is published or overwritten.
func (e *Engine) Restore(ctx context.Context, progress io.Writer) (*index.Generation, error) {
	r, err := e.NewRebuilder(progress)
	if err != nil {
		return nil, err
	}
	gen, err := r.Restore(ctx)
	switch {
	case err == nil:
		return gen, nil
	case errors.Is(err, core.ErrConfiguration):
		return nil, err
	case errors.Is(err, rebuild.ErrNoArtifact):
	case errors.Is(err, core.ErrIndexUnavailable), errors.Is(err, index.ErrUnsupportedArtifact):
		e.logger.Warn("restoring generation failed, rebuilding", "err", err)
	default:
		return nil, err
	}
	return r.Run(ctx)
}

// NewServer returns an HTTP server over the engine's searcher with the
// metrics endpoint mounted.
func (e *Engine) NewServer(opts ...server.Option) (*server.Server, error) {
	base := []server.Option{
		server.WithLogger(e.logger),
		server.WithMetricsHandler(e.metrics.Handler()),
		server.WithRequestTimeout(e.cfg.Server.RequestTimeout),
		server.WithRetryAfter(e.cfg.Server.RetryAfter),
		server.WithTimeouts(e.cfg.Server.ReadTimeout, e.cfg.Server.WriteTimeout),
	}
	return server.New(e.searcher, e.handle, append(base, opts...)...)
}
