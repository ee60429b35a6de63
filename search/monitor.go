package search

import (
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
)

// Stage is a step of query execution.
type Stage int

const (
	StageReceived Stage = iota
	StageCandidateGeneration
	StageFiltering
	StageScoring
	StageRanked
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageCandidateGeneration:
		return "CANDIDATE_GENERATION"
	case StageFiltering:
		return "FILTERING"
	case StageScoring:
		return "SCORING"
	case StageRanked:
		return "RANKED"
	}
	return "UNKNOWN"
}

// Monitor provides hooks to observe query execution.
// A Monitor shared between Searcher calls must be safe for concurrent use.
type Monitor interface {
	Start(query *core.PreferenceQuery)
	Enter(stage Stage)
	AfterCandidateGeneration(k int, candidates []similarity.Match)
	AfterFiltering(passed int, rejectedBy map[string]int)
	AfterScoring(scored, skipped int)
	Finish(resp *core.QueryResponse, err error, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.PreferenceQuery)                          {}
func (n *noopMonitor) Enter(_ Stage)                                          {}
func (n *noopMonitor) AfterCandidateGeneration(_ int, _ []similarity.Match)   {}
func (n *noopMonitor) AfterFiltering(_ int, _ map[string]int)                 {}
func (n *noopMonitor) AfterScoring(_, _ int)                                  {}
func (n *noopMonitor) Finish(_ *core.QueryResponse, _ error, _ time.Duration) {}
