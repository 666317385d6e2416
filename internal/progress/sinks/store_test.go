package sinks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

func TestStoreSinkCollapsesPerRun(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)

	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: "r1", TS: now, Stage: progress.StageRunStart},
		{RunID: "r1", TS: now, Stage: progress.StagePageDone, Item: "a", Page: 1},
		{RunID: "r1", TS: now, Stage: progress.StagePageDone, Item: "a", Page: 2},
		{RunID: "r1", TS: now, Stage: progress.StagePageRetry, Item: "a", Page: 3},
		{RunID: "r1", TS: now, Stage: progress.StageItemDone, Item: "a", Status: "completed", Records: 17},
		{RunID: "r2", TS: now, Stage: progress.StagePageDone, Item: "b", Page: 1},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []string{"r1"}, repo.started)
	d1 := repo.deltas["r1"]
	require.Equal(t, 2, d1.PagesDone)
	require.Equal(t, 1, d1.Retries)
	require.Equal(t, 1, d1.ItemsDone)
	require.Equal(t, 17, d1.Records)
	require.Equal(t, 1, repo.deltas["r2"].PagesDone)
}

func TestStoreSinkRunCompletion(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)

	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r1", TS: now, Stage: progress.StageRunError, Note: "discovery failed"},
	}))
	require.Equal(t, "discovery failed", repo.finishNote)
	require.False(t, repo.finishOK)
}

type fakeRunRepo struct {
	mu         sync.Mutex
	started    []string
	deltas     map[string]Delta
	finishOK   bool
	finishNote string
}

func (f *fakeRunRepo) MarkRunStarted(_ context.Context, runID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, runID)
	return nil
}

func (f *fakeRunRepo) MarkRunFinished(_ context.Context, _ string, _ time.Time, ok bool, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishOK = ok
	f.finishNote = note
	return nil
}

func (f *fakeRunRepo) ApplyProgress(_ context.Context, runID string, delta Delta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deltas == nil {
		f.deltas = make(map[string]Delta)
	}
	d := f.deltas[runID]
	d.ItemsStarted += delta.ItemsStarted
	d.ItemsDone += delta.ItemsDone
	d.PagesDone += delta.PagesDone
	d.Retries += delta.Retries
	d.Records += delta.Records
	f.deltas[runID] = d
	return nil
}
