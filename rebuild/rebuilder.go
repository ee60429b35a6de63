package rebuild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
)

// Config holds configuration for a rebuild.
type Config struct {
	// BatchSize is the number of parcels read per repository call
	BatchSize int `toml:"batch_size"`

	// ReportInterval is how often to report progress (number of parcels)
	ReportInterval int `toml:"report_interval"`

	// MaxRetries is the maximum number of attempts for each storage call
	MaxRetries int `toml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `toml:"retry_delay"`

	// ArtifactPath, when set, is where the generation is exported before it is published
	ArtifactPath string `toml:"artifact_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 5000,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Rebuilder turns the stored parcel set into a published index generation.
// Run is not safe to call concurrently with itself; the handle serializes
// publication but two rebuilds would race to record the snapshot.
type Rebuilder struct {
	repo      storage.ParcelRepository
	snapshots storage.SnapshotRepository
	builder   *index.Builder
	handle    *index.Handle
	config    *Config
	progress  io.Writer
	iterator  *ParcelIterator
	logger    *slog.Logger
}

// Option configures a Rebuilder.
type Option func(*Rebuilder) error

// WithSnapshotRepository records every published generation in repo.
func WithSnapshotRepository(repo storage.SnapshotRepository) Option {
	return func(r *Rebuilder) error {
		r.snapshots = repo
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rebuilder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRebuilder creates a new rebuilder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewRebuilder(repo storage.ParcelRepository, builder *index.Builder, handle *index.Handle, config *Config, progress io.Writer, opts ...Option) (*Rebuilder, error) {
	if repo == nil || builder == nil || handle == nil {
		return nil, fmt.Errorf("%w: rebuild needs a repository, builder and handle", core.ErrConfiguration)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Rebuilder{
		repo:     repo,
		builder:  builder,
		handle:   handle,
		config:   config,
		progress: progress,
		iterator: NewParcelIterator(repo, config.BatchSize, config.MaxRetries, config.RetryDelay),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "rebuild")
	return r, nil
}

// Run reads every stored parcel, builds a generation, exports it when an
// artifact path is configured, publishes it and records the snapshot.
// The previous generation keeps serving until the new one is published;
// on error nothing is published.
func (r *Rebuilder) Run(ctx context.Context) (*index.Generation, error) {
	var total int
	err := RetryWithBackoff(ctx, func() error {
		var err error
		total, err = r.repo.Count(ctx)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to count parcels: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No parcels found in repository (0 parcels)\n")
		return nil, ErrNoParcels
	}

	fmt.Fprintf(r.progress, "Starting rebuild of %d parcels (batch size: %d)\n", total, r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, "Reading", total, r.config.ReportInterval)
	tracker.Start()

	parcels := make([]*core.Parcel, 0, total)
	err = r.iterator.ForEach(ctx, func(batch []*core.Parcel) error {
		parcels = append(parcels, batch...)
		tracker.Add(len(batch))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read parcels: %w", err)
	}
	tracker.Finish()

	gen, err := r.builder.Build(ctx, parcels)
	if err != nil {
		return nil, fmt.Errorf("failed to build generation: %w", err)
	}
	if gen.Len() == 0 {
		return nil, fmt.Errorf("%w: all %d parcels rejected", ErrNoParcels, len(parcels))
	}

	if path := r.config.ArtifactPath; path != "" {
		if err := index.ExportFile(path, gen); err != nil {
			return nil, fmt.Errorf("failed to export generation: %w", err)
		}
		r.logger.Info("generation exported", "snapshot", gen.SnapshotID, "path", path)
	}

	if _, err := r.handle.Publish(gen); err != nil {
		return nil, err
	}

	if r.snapshots != nil {
		snap := SnapshotOf(gen, r.config.ArtifactPath)
		err := RetryWithBackoff(ctx, func() error {
			return r.snapshots.SaveSnapshot(ctx, snap)
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			// The generation is already serving; only the record is missing.
			r.logger.Error("failed to record snapshot", "snapshot", gen.SnapshotID, "err", err)
			return gen, fmt.Errorf("failed to record snapshot: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Rebuild complete. Indexed %d parcels, rejected %d, snapshot %s in %v\n",
		gen.Len(), len(gen.Rejections()), gen.SnapshotID, elapsed.Round(time.Millisecond))
	return gen, nil
}

// Restore loads the artifact recorded in the snapshot repository and
// publishes it. It returns ErrNoArtifact when nothing was exported.
func (r *Rebuilder) Restore(ctx context.Context) (*index.Generation, error) {
	if r.snapshots == nil {
		return nil, ErrNoArtifact
	}
	snap, err := r.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.ArtifactPath == "" {
		return nil, ErrNoArtifact
	}

	gen, err := index.LoadFile(snap.ArtifactPath, r.builder.Schema())
	if err != nil {
		return nil, err
	}
	if gen.SnapshotID != snap.ID {
		r.logger.Warn("artifact does not match recorded snapshot",
			"recorded", snap.ID, "artifact", gen.SnapshotID, "path", snap.ArtifactPath)
	}
	if _, err := r.handle.Publish(gen); err != nil {
		return nil, err
	}
	r.logger.Info("generation restored", "snapshot", gen.SnapshotID, "parcels", gen.Len())
	return gen, nil
}

// SnapshotOf describes gen for the snapshot repository.
func SnapshotOf(gen *index.Generation, artifactPath string) *core.Snapshot {
	return &core.Snapshot{
		ID:                 gen.SnapshotID,
		SchemaVersion:      gen.SchemaVersion,
		SchemaFingerprint:  gen.SchemaFingerprint,
		ContentFingerprint: gen.ContentFingerprint,
		ParcelCount:        gen.Len(),
		RejectedCount:      len(gen.Rejections()),
		BuiltAt:            gen.BuiltAt,
		PublishedAt:        time.Now().UTC(),
		ArtifactPath:       artifactPath,
	}
}
