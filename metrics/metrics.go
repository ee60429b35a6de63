// Package metrics exposes Prometheus instruments for the query engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/ingestion"
	"github.com/MarcinSar/moja-dzialka-sub000/search"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK               = "ok"
	OutcomeSparse           = "sparse"
	OutcomeInvalidRequest   = "invalid_request"
	OutcomeNoCoverage       = "no_coverage"
	OutcomeIndexUnavailable = "index_unavailable"
	OutcomeConfiguration    = "configuration"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Metrics holds every instrument. Its methods are safe for concurrent use,
// so one value can serve as the search monitor for all queries.
type Metrics struct {
	QueriesTotal        *prometheus.CounterVec
	QueryDurationMs     prometheus.Histogram
	CandidatesPerQuery  prometheus.Histogram
	FilterRejectsTotal  *prometheus.CounterVec
	SkippedParcelsTotal prometheus.Counter
	GenerationSwaps     prometheus.Counter
	GenerationParcels   prometheus.Gauge
	GenerationSeq       prometheus.Gauge
	IngestedTotal       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var (
	_ search.Monitor     = (*Metrics)(nil)
	_ ingestion.Observer = (*Metrics)(nil)
)

// New creates the instruments and registers them with reg.
// A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dzialka_queries_total",
			Help: "Total number of preference queries by outcome",
		}, []string{"outcome"}),
		QueryDurationMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dzialka_query_duration_ms",
			Help:    "Query duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		CandidatesPerQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dzialka_query_candidates",
			Help:    "Similarity candidates generated per query",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 5000},
		}),
		FilterRejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dzialka_filter_rejects_total",
			Help: "Candidates dropped by each hard filter",
		}, []string{"filter"}),
		SkippedParcelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dzialka_skipped_parcels_total",
			Help: "Candidates skipped during scoring because their embedding was unusable",
		}),
		GenerationSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dzialka_generation_swaps_total",
			Help: "Index generations published",
		}),
		GenerationParcels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dzialka_generation_parcels",
			Help: "Parcels in the serving generation",
		}),
		GenerationSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dzialka_generation_seq",
			Help: "Publication sequence number of the serving generation",
		}),
		IngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dzialka_ingested_parcels_total",
			Help: "Parcel records ingested by result",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDurationMs,
		m.CandidatesPerQuery,
		m.FilterRejectsTotal,
		m.SkippedParcelsTotal,
		m.GenerationSwaps,
		m.GenerationParcels,
		m.GenerationSeq,
		m.IngestedTotal,
	)
	return m
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome classifies a query result for the outcome label.
func Outcome(resp *core.QueryResponse, err error) string {
	switch {
	case err == nil && resp != nil && resp.NarrowingSuggested:
		return OutcomeSparse
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, core.ErrNoCoverage):
		return OutcomeNoCoverage
	case errors.Is(err, core.ErrIndexUnavailable):
		return OutcomeIndexUnavailable
	case errors.Is(err, core.ErrConfiguration):
		return OutcomeConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

func (m *Metrics) Start(_ *core.PreferenceQuery) {}
func (m *Metrics) Enter(_ search.Stage)          {}

func (m *Metrics) AfterCandidateGeneration(_ int, candidates []similarity.Match) {
	m.CandidatesPerQuery.Observe(float64(len(candidates)))
}

func (m *Metrics) AfterFiltering(_ int, rejectedBy map[string]int) {
	for name, n := range rejectedBy {
		m.FilterRejectsTotal.WithLabelValues(name).Add(float64(n))
	}
}

func (m *Metrics) AfterScoring(_, skipped int) {
	if skipped > 0 {
		m.SkippedParcelsTotal.Add(float64(skipped))
	}
}

func (m *Metrics) Finish(resp *core.QueryResponse, err error, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(Outcome(resp, err)).Inc()
	m.QueryDurationMs.Observe(float64(elapsed) / float64(time.Millisecond))
}

// Ingested implements ingestion.Observer.
func (m *Metrics) Ingested(accepted, rejected int) {
	m.IngestedTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.IngestedTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// OnSwap is an index.Handle swap hook.
func (m *Metrics) OnSwap(_, next *index.Generation) {
	m.GenerationSwaps.Inc()
	m.GenerationParcels.Set(float64(next.Len()))
	m.GenerationSeq.Set(float64(next.Seq()))
}
