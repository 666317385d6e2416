// Package memory provides the in-process run registry. It backs the API's
// status and results queries and receives live progress from the event hub.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/progress/sinks"
)

// ErrNotFound signals an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run is the registry's view of one submitted run.
type Run struct {
	ID       string             `json:"id"`
	Request  crawler.RunRequest `json:"request"`
	Phase    crawler.RunPhase   `json:"phase"`
	Note     string             `json:"note,omitempty"`
	Created  time.Time          `json:"created"`
	Started  *time.Time         `json:"started,omitempty"`
	Finished *time.Time         `json:"finished,omitempty"`

	// Live counters, updated from progress events.
	ItemsStarted int       `json:"items_started"`
	ItemsDone    int       `json:"items_done"`
	PagesDone    int       `json:"pages_done"`
	Retries      int       `json:"retries"`
	Records      int       `json:"records"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunStore is a thread-safe in-memory run registry. Implements
// sinks.RunRepository for progress and crawler.ResultStore for results.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	results map[string][]crawler.CrawlResult
	cancels map[string]context.CancelFunc
}

// NewRunStore constructs an empty registry.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[string]*Run),
		results: make(map[string][]crawler.CrawlResult),
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateRun registers a pending run.
func (s *RunStore) CreateRun(req crawler.RunRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[req.RunID]; exists {
		return errors.New("run already exists")
	}
	now := time.Now().UTC()
	s.runs[req.RunID] = &Run{
		ID:        req.RunID,
		Request:   req,
		Phase:     crawler.RunPending,
		Created:   now,
		UpdatedAt: now,
	}
	return nil
}

// AttachCancel registers the run's cancel function so the API can stop it.
func (s *RunStore) AttachCancel(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[runID] = cancel
}

// Cancel invokes the run's cancel function. Cancelling an unknown or
// already-finished run returns ErrNotFound.
func (s *RunStore) Cancel(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok || run.Phase.Terminal() {
		return ErrNotFound
	}
	if cancel, ok := s.cancels[runID]; ok {
		cancel()
	}
	run.Phase = crawler.RunCanceled
	now := time.Now().UTC()
	run.Finished = &now
	run.UpdatedAt = now
	return nil
}

// MarkRunStarted implements sinks.RunRepository.
func (s *RunStore) MarkRunStarted(_ context.Context, runID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if run.Started == nil {
		started := at
		run.Started = &started
	}
	if !run.Phase.Terminal() {
		run.Phase = crawler.RunRunning
	}
	run.UpdatedAt = at
	return nil
}

// MarkRunFinished implements sinks.RunRepository. A cancelled run keeps its
// canceled phase even when the runner reports completion afterwards.
func (s *RunStore) MarkRunFinished(_ context.Context, runID string, at time.Time, ok bool, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, found := s.runs[runID]
	if !found {
		return ErrNotFound
	}
	if !run.Phase.Terminal() {
		if ok {
			run.Phase = crawler.RunSucceeded
		} else {
			run.Phase = crawler.RunFailed
		}
		finished := at
		run.Finished = &finished
	}
	if note != "" {
		run.Note = note
	}
	run.UpdatedAt = at
	delete(s.cancels, runID)
	return nil
}

// ApplyProgress implements sinks.RunRepository.
func (s *RunStore) ApplyProgress(_ context.Context, runID string, delta sinks.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.ItemsStarted += delta.ItemsStarted
	run.ItemsDone += delta.ItemsDone
	run.PagesDone += delta.PagesDone
	run.Retries += delta.Retries
	run.Records += delta.Records
	if delta.At.After(run.UpdatedAt) {
		run.UpdatedAt = delta.At
	}
	return nil
}

// SaveResult implements crawler.ResultStore, keeping results queryable while
// the durable store persists them elsewhere.
func (s *RunStore) SaveResult(_ context.Context, runID string, result crawler.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// GetRun returns a copy of one run.
func (s *RunStore) GetRun(runID string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return *run, nil
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out
}

// Results returns the run's accumulated item results.
func (s *RunStore) Results(runID string) ([]crawler.CrawlResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	results := s.results[runID]
	out := make([]crawler.CrawlResult, len(results))
	copy(out, results)
	return out, nil
}
