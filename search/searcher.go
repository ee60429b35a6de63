package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/filter"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
)

// GenerationSource yields the generation a query runs against.
// *index.Handle implements it.
type GenerationSource interface {
	Current() (*index.Generation, error)
}

// Searcher runs preference queries against the current generation.
// It holds no per-query state and is safe for concurrent use.
type Searcher struct {
	source  GenerationSource
	encoder *Encoder
	monitor Monitor
	logger  *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithEncoder sets the preference encoder.
// Default encodes against the default schema and DefaultConfig().
func WithEncoder(e *Encoder) Option {
	return func(s *Searcher) error {
		if e == nil {
			return ErrEncoderRequired
		}
		s.encoder = e
		return nil
	}
}

// WithMonitor sets the monitor used when a call does not pass its own.
func WithMonitor(m Monitor) Option {
	return func(s *Searcher) error {
		if m != nil {
			s.monitor = m
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(source GenerationSource, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}

	s := &Searcher{
		source:  source,
		monitor: &noopMonitor{},
		logger:  slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.encoder == nil {
		schema, err := embedding.NewSchema(embedding.DefaultParams())
		if err != nil {
			return nil, err
		}
		if s.encoder, err = NewEncoder(schema, nil, DefaultConfig()); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")
	return s, nil
}

// Encoder returns the encoder in use.
func (s *Searcher) Encoder() *Encoder {
	return s.encoder
}

// Search answers q against the current generation.
func (s *Searcher) Search(ctx context.Context, q *core.PreferenceQuery) (*core.QueryResponse, error) {
	return s.SearchWithMonitor(ctx, q, nil)
}

// candidate is a parcel that survived filtering.
type candidate struct {
	parcel  *core.Parcel
	score   float64
	matched []string
	vector  []float32
}

// SearchWithMonitor answers q and reports each stage to monitor.
// A nil monitor falls back to the one configured with WithMonitor.
//
// Errors wrap core.ErrInvalidRequest, core.ErrNoCoverage,
// core.ErrIndexUnavailable or core.ErrConfiguration.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q *core.PreferenceQuery, monitor Monitor) (resp *core.QueryResponse, err error) {
	if monitor == nil {
		monitor = s.monitor
	}
	start := time.Now()
	monitor.Start(q)
	monitor.Enter(StageReceived)
	defer func() {
		monitor.Finish(resp, err, time.Since(start))
	}()

	plan, err := s.encoder.Encode(q)
	if err != nil {
		s.logger.Debug("rejected query", "err", err)
		return nil, err
	}
	gen, err := s.source.Current()
	if err != nil {
		s.logger.Warn("no generation available", "err", err)
		return nil, err
	}
	if err := s.encoder.Schema().CheckCompatible(gen.SchemaVersion, gen.SchemaFingerprint); err != nil {
		s.logger.Error("generation schema does not match query schema", "snapshot", gen.SnapshotID, "err", err)
		return nil, err
	}
	if err := s.checkCoverage(gen, plan); err != nil {
		s.logger.Debug("query outside indexed region", "err", err)
		return nil, err
	}

	// 1. Candidate generation
	monitor.Enter(StageCandidateGeneration)
	k := plan.Candidates(s.encoder.Config(), gen.Len())
	var inRadius map[string]bool
	var matches []similarity.Match
	if plan.Center != nil {
		ids := gen.Spatial().QueryRadius(*plan.Center, plan.RadiusM)
		inRadius = make(map[string]bool, len(ids))
		for _, id := range ids {
			inRadius[id] = true
		}
		if len(ids) <= k {
			// Small enough to score every parcel in the circle exactly.
			matches = s.scoreAll(gen, plan, ids)
		}
	}
	if matches == nil {
		matches, err = gen.Similarity().TopK(ctx, plan.Vector, k)
		if err != nil {
			s.logger.Error("similarity search failed", "k", k, "err", err)
			return nil, err
		}
	}
	monitor.AfterCandidateGeneration(k, matches)

	// 2. Filtering
	monitor.Enter(StageFiltering)
	f := s.encoder.Filter()
	rejectedBy := make(map[string]int)
	passed := make([]candidate, 0, len(matches))
	for i, m := range matches {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p, ok := gen.Parcel(m.ID)
		if !ok {
			s.logger.Warn("candidate missing from generation", "id", m.ID, "snapshot", gen.SnapshotID)
			continue
		}
		var matched []string
		if inRadius != nil {
			if !inRadius[m.ID] {
				rejectedBy[filter.NameRadius]++
				continue
			}
			matched = append(matched, filter.NameRadius)
		}
		v := f.Evaluate(p, &plan.Constraints)
		if !v.Passed {
			rejectedBy[v.RejectedBy]++
			continue
		}
		passed = append(passed, candidate{parcel: p, score: m.Score, matched: append(matched, v.Matched...)})
	}
	monitor.AfterFiltering(len(passed), rejectedBy)

	// 3. Scoring
	monitor.Enter(StageScoring)
	scored := passed[:0]
	skipped := 0
	for _, c := range passed {
		vec, ok := gen.Similarity().Vector(c.parcel.ID)
		if !ok || len(vec) != len(plan.Vector) || math.IsNaN(c.score) {
			s.logger.Warn("skipping parcel with unusable embedding", "id", c.parcel.ID, "snapshot", gen.SnapshotID)
			skipped++
			continue
		}
		c.vector = vec
		scored = append(scored, c)
	}
	monitor.AfterScoring(len(scored), skipped)

	// 4. Ranking
	monitor.Enter(StageRanked)
	slices.SortFunc(scored, compareCandidates)

	resp = &core.QueryResponse{
		TotalCandidates: len(scored),
		Results:         []core.RankedResult{},
		SnapshotID:      gen.SnapshotID,
		SchemaVersion:   gen.SchemaVersion,
	}
	lo := min(plan.Offset, len(scored))
	hi := min(lo+plan.Limit, len(scored))
	for i, c := range scored[lo:hi] {
		resp.Results = append(resp.Results, core.RankedResult{
			ParcelID:        c.parcel.ID,
			Rank:            lo + i + 1,
			SimilarityScore: c.score,
			ScoreBreakdown:  plan.Breakdown(c.vector),
			MatchedFilters:  append([]string{}, c.matched...),
		})
	}
	resp.NarrowingSuggested = len(resp.Results) < plan.Limit

	s.logger.Debug("query answered",
		"snapshot", gen.SnapshotID,
		"k", k,
		"candidates", len(matches),
		"matched", len(scored),
		"returned", len(resp.Results))
	return resp, nil
}

// compareCandidates orders by score descending, then composite score sum
// descending, then parcel ID ascending.
func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	if c := cmp.Compare(scoreSum(b.parcel), scoreSum(a.parcel)); c != 0 {
		return c
	}
	return cmp.Compare(a.parcel.ID, b.parcel.ID)
}

func scoreSum(p *core.Parcel) int {
	if p.Scores == nil {
		return 0
	}
	return p.Scores.Sum()
}

// scoreAll computes exact similarities for ids, best first.
func (s *Searcher) scoreAll(gen *index.Generation, plan *Plan, ids []string) []similarity.Match {
	out := make([]similarity.Match, 0, len(ids))
	for _, id := range ids {
		score, ok := gen.Similarity().Score(plan.Vector, id)
		if !ok {
			s.logger.Warn("parcel has no embedding", "id", id, "snapshot", gen.SnapshotID)
			continue
		}
		out = append(out, similarity.Match{ID: id, Score: score})
	}
	slices.SortFunc(out, similarity.CompareMatches)
	return out
}

func (s *Searcher) checkCoverage(gen *index.Generation, plan *Plan) error {
	if g := plan.Constraints.Gmina; g != "" && !gen.HasGmina(g) {
		return fmt.Errorf("%w: gmina %q", core.ErrNoCoverage, g)
	}
	if c := plan.Center; c != nil && !gen.Spatial().Covers(*c, s.encoder.Config().CoverageMarginM) {
		return fmt.Errorf("%w: point %.0f,%.0f", core.ErrNoCoverage, c.X, c.Y)
	}
	return nil
}

// Detail returns a copy of the parcel with the given ID from the current generation.
func (s *Searcher) Detail(ctx context.Context, id string) (*core.Parcel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen, err := s.source.Current()
	if err != nil {
		return nil, err
	}
	p, ok := gen.Parcel(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParcelNotFound, id)
	}
	return p.Clone(), nil
}
