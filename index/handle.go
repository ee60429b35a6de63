package index

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Handle holds the generation queries read from. Readers never block:
// Current is a single atomic load. Publish is serialized so sequence numbers
// and swap hooks observe generations in publication order.
type Handle struct {
	mu      sync.Mutex
	current atomic.Pointer[Generation]
	onSwap  []func(prev, next *Generation)
	logger  *slog.Logger
}

// HandleOption configures a Handle.
type HandleOption func(*Handle) error

// WithSwapHook registers fn to run after every successful Publish.
// prev is nil for the first publication.
func WithSwapHook(fn func(prev, next *Generation)) HandleOption {
	return func(h *Handle) error {
		if fn != nil {
			h.onSwap = append(h.onSwap, fn)
		}
		return nil
	}
}

// WithHandleLogger sets a custom logger.
// Default is slog.Default().
func WithHandleLogger(logger *slog.Logger) HandleOption {
	return func(h *Handle) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger
		return nil
	}
}

// NewHandle returns an empty handle. Current fails with
// core.ErrIndexUnavailable until the first Publish.
func NewHandle(opts ...HandleOption) (*Handle, error) {
	h := &Handle{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	h.logger = h.logger.With("component", "handle")
	return h, nil
}

// Current returns the published generation.
func (h *Handle) Current() (*Generation, error) {
	g := h.current.Load()
	if g == nil {
		return nil, core.ErrIndexUnavailable
	}
	return g, nil
}

// Publish makes gen the current generation and returns the one it replaced.
// gen must be fully built; it is never modified after this call.
func (h *Handle) Publish(gen *Generation) (*Generation, error) {
	if gen == nil {
		return nil, ErrNilGeneration
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.current.Load()
	if prev == gen {
		return prev, nil
	}
	gen.seq = 1
	if prev != nil {
		gen.seq = prev.seq + 1
	}
	h.current.Store(gen)

	h.logger.Info("generation published", "snapshot", gen.SnapshotID, "seq", gen.seq, "parcels", gen.Len())
	for _, fn := range h.onSwap {
		fn(prev, gen)
	}
	return prev, nil
}
