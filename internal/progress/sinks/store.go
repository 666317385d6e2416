package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

// Delta is a collapsed batch of progress for one run.
type Delta struct {
	ItemsStarted int
	ItemsDone    int
	PagesDone    int
	Retries      int
	Records      int
	At           time.Time
}

// RunRepository receives live progress updates for run-status queries.
type RunRepository interface {
	MarkRunStarted(ctx context.Context, runID string, at time.Time) error
	MarkRunFinished(ctx context.Context, runID string, at time.Time, ok bool, note string) error
	ApplyProgress(ctx context.Context, runID string, delta Delta) error
}

// StoreSink persists progress into a RunRepository. Page and item counters
// are collapsed per run before writing to reduce write amplification.
type StoreSink struct {
	repo   RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses the batch per run and forwards it to the repository.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[string]*Delta)

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.MarkRunStarted(ctx, evt.RunID, evt.TS); err != nil {
				return fmt.Errorf("mark run started: %w", err)
			}
		case progress.StageRunDone:
			if err := s.repo.MarkRunFinished(ctx, evt.RunID, evt.TS, true, ""); err != nil {
				return fmt.Errorf("mark run finished: %w", err)
			}
		case progress.StageRunError:
			if err := s.repo.MarkRunFinished(ctx, evt.RunID, evt.TS, false, evt.Note); err != nil {
				return fmt.Errorf("mark run failed: %w", err)
			}
		default:
			s.collapse(deltas, evt)
		}
	}

	for runID, delta := range deltas {
		if err := s.repo.ApplyProgress(ctx, runID, *delta); err != nil {
			return fmt.Errorf("apply progress: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) collapse(deltas map[string]*Delta, evt progress.Event) {
	d := deltas[evt.RunID]
	if d == nil {
		d = &Delta{}
		deltas[evt.RunID] = d
	}
	switch evt.Stage {
	case progress.StageItemStart:
		d.ItemsStarted++
	case progress.StageItemDone:
		d.ItemsDone++
		d.Records += evt.Records
	case progress.StagePageDone:
		d.PagesDone++
	case progress.StagePageRetry:
		d.Retries++
	}
	if evt.TS.After(d.At) {
		d.At = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
