// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package restore implements the natural-key reconciliation engine: scenario
// detection, the enhanced/direct/raw processor chain, integrity validation,
// and the session lifecycle around them.
package restore

import (
	"sync"
	"time"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// Outcome classifies what happened to one exported record during restore.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeLinkedExisting Outcome = "linked_existing"
	OutcomeRemapped       Outcome = "remapped"
	OutcomeSkipped        Outcome = "skipped_unresolved"
	OutcomeFailed         Outcome = "failed"
)

// Strategy names the processing path that produced a record outcome.
type Strategy string

const (
	StrategyEnhanced Strategy = "enhanced"
	StrategyDirect   Strategy = "direct"
	StrategyRaw      Strategy = "raw"
)

// Status is the session-level lifecycle state exposed to the trigger layer.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partially-completed"
	StatusFailed    Status = "failed"
)

// RecordResult is the per-record outcome captured in the session.
type RecordResult struct {
	ModelType  string   `json:"model_type"`
	NaturalKey []string `json:"natural_key"`
	Outcome    Outcome  `json:"outcome"`
	Strategy   Strategy `json:"strategy"`
	// Partial marks rows materialized with some fields nulled or defaulted.
	Partial bool   `json:"partial,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Session tracks one restore invocation from detection through validation.
// The caches it carries are constructed fresh per session and never shared
// across sessions.
type Session struct {
	ID         string
	KeyFormat  string
	Scenario   Scenario
	StartedAt  time.Time
	FinishedAt time.Time

	Index *NaturalKeyIndex
	IDMap *IdentifierMapping

	mu      sync.Mutex
	status  Status
	results []RecordResult
	// byKey lets a later strategy override the outcome an earlier strategy
	// recorded for the same record, so the report carries final outcomes.
	byKey map[string]int

	// RolledBack marks a run whose record work was undone by a
	// transaction rollback; the per-record outcomes then describe what
	// was attempted, not what the destination holds.
	RolledBack bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession constructs an empty session with fresh caches.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		status:    StatusQueued,
		StartedAt: time.Now().UTC(),
		Index:     NewNaturalKeyIndex(),
		IDMap:     NewIdentifierMapping(),
		byKey:     map[string]int{},
		done:      make(chan struct{}),
	}
}

// Done is closed when the session reaches a terminal status and its report
// has been persisted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Status returns the session's lifecycle state. Safe to poll from other
// goroutines while the session runs.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus transitions the session's lifecycle state.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Record stores (or overrides) the outcome for one record.
func (s *Session) Record(res RecordResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := res.ModelType + "\x00" + model.KeyString(res.NaturalKey)
	if i, ok := s.byKey[k]; ok {
		s.results[i] = res
		return
	}
	s.byKey[k] = len(s.results)
	s.results = append(s.results, res)
}

// Results returns a copy of the per-record outcomes.
func (s *Session) Results() []RecordResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordResult, len(s.results))
	copy(out, s.results)
	return out
}

// OutcomeCounts is the per-model-type tally in a report.
type OutcomeCounts map[Outcome]int

// Report is the user-facing summary of one restore session. It is the sole
// surface on which record-level problems are reported.
type Report struct {
	SessionID    string                   `json:"session_id" yaml:"session_id"`
	KeyFormat    string                   `json:"key_format" yaml:"key_format"`
	Scenario     Scenario                 `json:"scenario" yaml:"scenario"`
	Status       Status                   `json:"status" yaml:"status"`
	StartedAt    time.Time                `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time                `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	TotalRecords int                      `json:"total_records" yaml:"total_records"`
	PerType      map[string]OutcomeCounts `json:"per_type" yaml:"per_type"`
	// Completeness is the fraction of records that ended created, linked,
	// or remapped.
	Completeness float64 `json:"completeness" yaml:"completeness"`
	// RolledBack is set when the run's transaction was rolled back; the
	// outcomes above were attempted but did not reach the destination.
	RolledBack bool           `json:"rolled_back,omitempty" yaml:"rolled_back,omitempty"`
	Validation *Validation    `json:"validation,omitempty" yaml:"validation,omitempty"`
	Records    []RecordResult `json:"records,omitempty" yaml:"records,omitempty"`
}

// BuildReport aggregates the session's per-record outcomes.
func (s *Session) BuildReport(v *Validation) *Report {
	results := s.Results()
	per := map[string]OutcomeCounts{}
	ok := 0
	for _, r := range results {
		c := per[r.ModelType]
		if c == nil {
			c = OutcomeCounts{}
			per[r.ModelType] = c
		}
		c[r.Outcome]++
		switch r.Outcome {
		case OutcomeCreated, OutcomeLinkedExisting, OutcomeRemapped:
			ok++
		}
	}
	completeness := 1.0
	if len(results) > 0 {
		completeness = float64(ok) / float64(len(results))
	}
	return &Report{
		SessionID:    s.ID,
		KeyFormat:    s.KeyFormat,
		Scenario:     s.Scenario,
		Status:       s.Status(),
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		TotalRecords: len(results),
		PerType:      per,
		Completeness: completeness,
		RolledBack:   s.RolledBack,
		Validation:   v,
		Records:      results,
	}
}
