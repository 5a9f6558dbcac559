// Package metrics holds lightweight in-process dispatch counters.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Metrics counts dispatch outcomes. All methods are safe for concurrent use.
type Metrics struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	fallbacks atomic.Int64

	perCandidate sync.Map // "provider/model" -> *candidateCounters
}

type candidateCounters struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// New returns zeroed metrics.
func New() *Metrics { return &Metrics{} }

func (m *Metrics) candidate(key string) *candidateCounters {
	if v, ok := m.perCandidate.Load(key); ok {
		return v.(*candidateCounters)
	}
	v, _ := m.perCandidate.LoadOrStore(key, &candidateCounters{})
	return v.(*candidateCounters)
}

// RecordAttempt counts one upstream attempt against a candidate.
func (m *Metrics) RecordAttempt(provider, model string) {
	m.attempts.Add(1)
	m.candidate(provider + "/" + model).attempts.Add(1)
}

// RecordSuccess counts one completed upstream call.
func (m *Metrics) RecordSuccess(provider, model string) {
	m.successes.Add(1)
	m.candidate(provider + "/" + model).successes.Add(1)
}

// RecordFailure counts one failed upstream call.
func (m *Metrics) RecordFailure(provider, model string) {
	m.failures.Add(1)
	m.candidate(provider + "/" + model).failures.Add(1)
}

// RecordFallback counts one advance to the next candidate in a chain.
func (m *Metrics) RecordFallback() {
	m.fallbacks.Add(1)
}

// CandidateSnapshot is the per-candidate view at snapshot time.
type CandidateSnapshot struct {
	Attempts  int64 `json:"attempts"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Attempts   int64                        `json:"attempts"`
	Successes  int64                        `json:"successes"`
	Failures   int64                        `json:"failures"`
	Fallbacks  int64                        `json:"fallbacks"`
	Candidates map[string]CandidateSnapshot `json:"candidates,omitempty"`
}

// Snapshot copies current counter values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Attempts:   m.attempts.Load(),
		Successes:  m.successes.Load(),
		Failures:   m.failures.Load(),
		Fallbacks:  m.fallbacks.Load(),
		Candidates: make(map[string]CandidateSnapshot),
	}
	m.perCandidate.Range(func(k, v any) bool {
		c := v.(*candidateCounters)
		s.Candidates[k.(string)] = CandidateSnapshot{
			Attempts:  c.attempts.Load(),
			Successes: c.successes.Load(),
			Failures:  c.failures.Load(),
		}
		return true
	})
	return s
}
