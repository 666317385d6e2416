// Package coordinator runs many pagination engines under a bounded
// concurrency budget, isolating per-item failures and returning results in
// submission order.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

// ItemCrawler is the per-item pipeline the coordinator drives; the
// pagination engine satisfies it.
type ItemCrawler interface {
	Crawl(ctx context.Context, runID string, item crawler.WorkItem) crawler.CrawlResult
}

// Coordinator fans work items out to at most N concurrent engine runs.
type Coordinator struct {
	engine  ItemCrawler
	limit   int
	emitter progress.Emitter
	logger  *zap.Logger
}

// New builds a Coordinator with the given admission-gate width.
func New(engine ItemCrawler, limit int, emitter progress.Emitter, logger *zap.Logger) *Coordinator {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		engine:  engine,
		limit:   limit,
		emitter: emitter,
		logger:  logger.Named("coordinator"),
	}
}

// Run crawls every item and returns exactly one CrawlResult per input item,
// in input order regardless of completion order. Item failures, including
// panics inside the pipeline, are captured as a "failed" result and never
// abort sibling items. Run never returns an error: cancellation simply
// stops new fetches and the in-flight items finish with partial data.
func (c *Coordinator) Run(ctx context.Context, runID string, items []crawler.WorkItem) []crawler.CrawlResult {
	results := make([]crawler.CrawlResult, len(items))
	sem := make(chan struct{}, c.limit)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it crawler.WorkItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Single writer per slot; no lock needed.
			results[idx] = c.crawlOne(ctx, runID, it)
		}(i, item)
	}
	wg.Wait()
	return results
}

// crawlOne wraps one item's pipeline so that nothing escapes the item
// boundary.
func (c *Coordinator) crawlOne(ctx context.Context, runID string, item crawler.WorkItem) (result crawler.CrawlResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("item pipeline panicked",
				zap.String("item", item.ID),
				zap.Any("panic", r))
			result = crawler.CrawlResult{
				Item:     item,
				Status:   crawler.StatusFailed,
				Error:    fmt.Sprintf("panic: %v", r),
				Started:  start,
				Duration: time.Since(start),
			}
		}
		c.emitDone(runID, item, result)
	}()

	c.emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageItemStart,
		Item:  item.ID,
	})
	return c.engine.Crawl(ctx, runID, item)
}

func (c *Coordinator) emitDone(runID string, item crawler.WorkItem, result crawler.CrawlResult) {
	c.emit(progress.Event{
		RunID:   runID,
		TS:      time.Now().UTC(),
		Stage:   progress.StageItemDone,
		Item:    item.ID,
		Records: len(result.Records),
		Status:  string(result.Status),
		Dur:     result.Duration,
		Note:    result.Error,
	})
}

func (c *Coordinator) emit(evt progress.Event) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(evt)
}
