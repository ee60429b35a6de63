package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/labels"
	"github.com/MarcinSar/moja-dzialka-sub000/storage"
	"github.com/panjf2000/ants/v2"
)

const defaultBatchSize = 500

// Report summarizes one Ingest call.
type Report struct {
	Accepted []string         `json:"accepted"`
	Rejected []core.Rejection `json:"rejected"`
}

// Observer is notified after every Ingest call.
type Observer interface {
	Ingested(accepted, rejected int)
}

// Pipeline validates, enriches and stores parcel records.
type Pipeline struct {
	repository storage.ParcelRepository
	pool       *ants.Pool
	processors []processor
	scorer     *features.Scorer
	purposes   filter.PurposeTable
	source     labels.Source
	batchSize  int
	observer   Observer
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent batch processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many parcels are enriched and written together.
// Default is 500.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.batchSize = n
		return nil
	}
}

// WithLabelSource merges labels from src into every accepted parcel.
func WithLabelSource(src labels.Source) Option {
	return func(p *Pipeline) error {
		p.source = src
		return nil
	}
}

// WithPurposeTable sets the zoning symbol table used to fill missing purposes.
// Default is filter.DefaultPurposeTable().
func WithPurposeTable(t filter.PurposeTable) Option {
	return func(p *Pipeline) error {
		if t != nil {
			p.purposes = t
		}
		return nil
	}
}

// WithObserver reports accepted and rejected counts to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) error {
		p.observer = o
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.ParcelRepository, scorer *features.Scorer, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrParcelRepositoryRequired
	}
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	// Default pool size
	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository: repository,
		pool:       pool,
		scorer:     scorer,
		purposes:   filter.DefaultPurposeTable(),
		batchSize:  defaultBatchSize,
		logger:     slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	if p.source != nil {
		p.processors = append(p.processors, &labelProcessor{source: p.source, logger: p.logger})
	}
	p.processors = append(p.processors, &enrichProcessor{scorer: p.scorer, purposes: p.purposes})
	return p, nil
}

// Ingest validates parcels and stores the valid ones, replacing stored
// parcels with the same ID. The input is not modified.
//
// Invalid records and later duplicates of an ID are listed in the report and
// never fail the call. An error means storage failed or ctx ended; batches
// written before that remain stored.
func (p *Pipeline) Ingest(ctx context.Context, parcels []*core.Parcel) (*Report, error) {
	start := time.Now()
	report := &Report{Accepted: []string{}, Rejected: []core.Rejection{}}

	accepted := make([]*core.Parcel, 0, len(parcels))
	seen := make(map[string]bool, len(parcels))
	for _, parcel := range parcels {
		if err := core.ValidateParcel(parcel); err != nil {
			id := ""
			if parcel != nil {
				id = parcel.ID
			}
			p.logger.Warn("parcel rejected", "id", id, "err", err)
			report.Rejected = append(report.Rejected, core.Rejection{ID: id, Reason: err.Error()})
			continue
		}
		if seen[parcel.ID] {
			p.logger.Warn("parcel rejected", "id", parcel.ID, "err", ErrDuplicateParcel)
			report.Rejected = append(report.Rejected, core.Rejection{ID: parcel.ID, Reason: ErrDuplicateParcel.Error()})
			continue
		}
		seen[parcel.ID] = true
		accepted = append(accepted, parcel.Clone())
	}

	if err := p.store(ctx, accepted); err != nil {
		return nil, err
	}
	for _, parcel := range accepted {
		report.Accepted = append(report.Accepted, parcel.ID)
	}

	if p.observer != nil {
		p.observer.Ingested(len(report.Accepted), len(report.Rejected))
	}
	p.logger.Info("ingested parcels",
		"accepted", len(report.Accepted),
		"rejected", len(report.Rejected),
		"elapsed", time.Since(start))
	return report, nil
}

// store runs the processors and writes each batch on the pool.
func (p *Pipeline) store(ctx context.Context, parcels []*core.Parcel) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for lo := 0; lo < len(parcels); lo += p.batchSize {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		batch := parcels[lo:min(lo+p.batchSize, len(parcels))]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			for _, proc := range p.processors {
				if err := proc.process(ctx, batch); err != nil {
					fail(err)
					return
				}
			}
			if err := p.repository.AddParcels(ctx, batch...); err != nil {
				p.logger.Error("error storing parcels", "parcels", len(batch), "err", err)
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
