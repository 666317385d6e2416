package coordinator

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

func makeItems(n int) []crawler.WorkItem {
	items := make([]crawler.WorkItem, n)
	for i := range items {
		items[i] = crawler.WorkItem{
			ID:  "item-" + strconv.Itoa(i),
			URL: "https://x.test/Attraction_Review-g1-d" + strconv.Itoa(i) + "-Reviews-a.html",
		}
	}
	return items
}

func TestRunPreservesInputOrder(t *testing.T) {
	t.Parallel()

	// Earlier items take longer, so completion order inverts input order.
	eng := &fakeEngine{delay: func(id string) time.Duration {
		if id == "item-0" {
			return 50 * time.Millisecond
		}
		return 0
	}}
	c := New(eng, 4, nil, nil)

	items := makeItems(5)
	out := c.Run(context.Background(), "run-1", items)
	require.Len(t, out, len(items))
	for i, res := range out {
		require.Equal(t, items[i].ID, res.Item.ID)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	c := New(eng, 3, nil, nil)

	c.Run(context.Background(), "run-1", makeItems(12))
	require.LessOrEqual(t, eng.maxActive.Load(), int32(3))
	require.Equal(t, int32(12), eng.calls.Load())
}

func TestRunIsolatesPanics(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{panicOn: "item-2"}
	c := New(eng, 2, nil, nil)

	out := c.Run(context.Background(), "run-1", makeItems(4))
	require.Len(t, out, 4)

	require.Equal(t, crawler.StatusFailed, out[2].Status)
	require.Contains(t, out[2].Error, "panic")
	require.Equal(t, "item-2", out[2].Item.ID)

	for i, res := range out {
		if i == 2 {
			continue
		}
		require.Equal(t, crawler.StatusCompleted, res.Status)
	}
}

func TestRunEmitsItemEvents(t *testing.T) {
	t.Parallel()

	emitter := &captureEmitter{}
	c := New(&fakeEngine{}, 2, emitter, nil)

	c.Run(context.Background(), "run-7", makeItems(3))

	starts, dones := 0, 0
	for _, e := range emitter.all() {
		require.Equal(t, "run-7", e.RunID)
		switch e.Stage {
		case progress.StageItemStart:
			starts++
		case progress.StageItemDone:
			dones++
		}
	}
	require.Equal(t, 3, starts)
	require.Equal(t, 3, dones)
}

func TestRunEmptyInput(t *testing.T) {
	t.Parallel()

	c := New(&fakeEngine{}, 2, nil, nil)
	out := c.Run(context.Background(), "run-1", nil)
	require.Empty(t, out)
}

type fakeEngine struct {
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	delay     func(id string) time.Duration
	panicOn   string
	mu        sync.Mutex
}

func (f *fakeEngine) Crawl(_ context.Context, _ string, item crawler.WorkItem) crawler.CrawlResult {
	f.calls.Add(1)
	cur := f.active.Add(1)
	defer f.active.Add(-1)

	f.mu.Lock()
	if cur > f.maxActive.Load() {
		f.maxActive.Store(cur)
	}
	f.mu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(item.ID))
	}
	if item.ID == f.panicOn {
		panic("selector index out of range")
	}
	return crawler.CrawlResult{
		Item:    item,
		Status:  crawler.StatusCompleted,
		Records: []crawler.ReviewRecord{{Author: item.ID, Title: "t", WrittenDate: "2024-01-01", Rating: 4}},
	}
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) all() []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]progress.Event(nil), c.events...)
}
