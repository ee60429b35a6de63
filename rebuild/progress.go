package rebuild

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single self-overwriting progress line for one
// phase of a rebuild. A nil writer discards output.
type ProgressTracker struct {
	mu           sync.Mutex
	writer       io.Writer
	phase        string
	total        int
	current      int
	every        int
	lastReported int
	startTime    time.Time
	started      bool
}

// NewProgressTracker creates a tracker for total parcels that reports every
// reportInterval parcels.
func NewProgressTracker(writer io.Writer, phase string, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer: writer,
		phase:  phase,
		total:  total,
		every:  max(reportInterval, 1),
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Add records delta more parcels as done.
func (p *ProgressTracker) Add(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(p.current+delta, p.total)
	if p.current-p.lastReported >= p.every {
		p.report()
		p.lastReported = p.current
	}
}

// Finish reports the final count and ends the line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
	p.started = false
}

// Current returns the number of parcels recorded so far.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime)
}

func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}
	pct := 100.0
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100
	}
	fmt.Fprintf(p.writer, "\r%s: %d/%d parcels (%.1f%%) - %.0f parcels/s",
		p.phase, p.current, p.total, pct, rate)
}
