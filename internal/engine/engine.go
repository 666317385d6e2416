// Package engine implements the per-item pagination state machine: it walks
// one work item's review pages in order, retries failed pages with bounded
// backoff, deduplicates records by identity key, and produces exactly one
// terminal CrawlResult.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

// state is the engine's position in the crawl loop for one item.
type state int

const (
	stateReady state = iota
	stateFetching
	statePageDone
	stateBackoff
	stateItemDone
)

// Config tunes one engine instance. The same instance may crawl many items;
// all per-item state lives in the run struct.
type Config struct {
	// Language is the target review language code.
	Language string
	// MaxRetries bounds backoff rounds per page before the item is
	// abandoned with whatever it has collected.
	MaxRetries int
	// MaxPages optionally caps pages per item. Zero means no cap.
	MaxPages int
	// DefaultCount seeds the metrics resolver.
	DefaultCount int
}

// Deps are the engine's collaborators. Archive, Clock, Emitter, and Logger
// are optional.
type Deps struct {
	Fetcher  crawler.Fetcher
	Parser   crawler.Parser
	Policy   crawler.RatePolicy
	Resolver crawler.MetricsResolver
	Archive  crawler.BlobStore
	Clock    crawler.Clock
	Emitter  progress.Emitter
	Logger   *zap.Logger
}

// Engine drives paged retrieval for single work items. Safe for concurrent
// Crawl calls.
type Engine struct {
	deps Deps
	cfg  Config
}

// New builds an Engine and applies defaults.
func New(deps Deps, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("engine")
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Engine{deps: deps, cfg: cfg}
}

// run is the private per-item state: dedup set, retry counter, and the
// accumulated record list. Never shared across items, so no locking.
type run struct {
	item    crawler.WorkItem
	runID   string
	base    string
	page    int
	retries int
	seen    map[crawler.RecordKey]struct{}
	records []crawler.ReviewRecord
	pages   int
	fetched int

	lastErr  error
	lastNew  int
	lastBody []byte
}

// Crawl walks item's pages and returns its terminal result. Cancellation is
// observed at every state boundary and inside waits; an interrupted item
// keeps everything it has collected.
func (e *Engine) Crawl(ctx context.Context, runID string, item crawler.WorkItem) crawler.CrawlResult {
	started := e.deps.Clock.Now()
	result := crawler.CrawlResult{Item: item, Started: started}

	defaultCount := e.cfg.DefaultCount
	if item.DefaultCount > 0 {
		defaultCount = item.DefaultCount
	}
	metrics := e.deps.Resolver.Resolve(ctx, item, defaultCount)
	result.Metrics = metrics

	pages := metrics.TargetPages
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
	}
	if pages == 0 {
		result.Status = crawler.StatusNoTargetReviews
		result.Duration = e.deps.Clock.Now().Sub(started)
		return result
	}

	r := &run{
		item:  item,
		runID: runID,
		base:  crawler.LanguageURL(item.URL, e.cfg.Language),
		seen:  make(map[crawler.RecordKey]struct{}),
		pages: pages,
	}

	for st := stateReady; st != stateItemDone; {
		switch st {
		case stateReady:
			r.page = 1
			r.retries = 0
			st = stateFetching
		case stateFetching:
			st = e.doFetch(ctx, r)
		case statePageDone:
			st = e.doPageDone(ctx, r)
		case stateBackoff:
			st = e.doBackoff(ctx, r, &result)
		}
	}

	result.Records = r.records
	result.PagesFetched = r.fetched
	if len(r.records) > 0 {
		result.Status = crawler.StatusCompleted
	} else {
		result.Status = crawler.StatusFailedNoReviews
	}
	result.Duration = e.deps.Clock.Now().Sub(started)

	e.deps.Logger.Info("item done",
		zap.String("item", item.ID),
		zap.String("status", string(result.Status)),
		zap.Int("records", len(result.Records)),
		zap.Int("pages", result.PagesFetched),
		zap.Int("retries", result.Retries))
	return result
}

// doFetch issues one attempt for the current page and classifies the
// outcome.
func (e *Engine) doFetch(ctx context.Context, r *run) state {
	if ctx.Err() != nil {
		return stateItemDone
	}

	url := crawler.PageURL(r.base, r.page)
	body, err := e.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		r.lastErr = err
		r.lastBody = nil
		if !crawler.IsRetryable(err) {
			return stateItemDone
		}
		return stateBackoff
	}

	records, err := e.deps.Parser.ExtractRecords(body)
	if err != nil {
		r.lastErr = fmt.Errorf("parse page %d: %w", r.page, err)
		r.lastBody = body
		return stateBackoff
	}
	if len(records) == 0 {
		r.lastErr = crawler.ErrEmptyPage
		r.lastBody = body
		return stateBackoff
	}

	// First-seen wins: a key already collected on an earlier page (or
	// earlier on this one) is dropped silently.
	added := 0
	for _, rec := range records {
		key := rec.Key()
		if _, dup := r.seen[key]; dup {
			continue
		}
		r.seen[key] = struct{}{}
		r.records = append(r.records, rec)
		added++
	}
	r.lastNew = added
	r.fetched++
	r.lastErr = nil
	return statePageDone
}

// doPageDone resets the retry counter, paces, and advances or finishes.
func (e *Engine) doPageDone(ctx context.Context, r *run) state {
	r.retries = 0
	e.emit(progress.Event{
		RunID:   r.runID,
		TS:      e.deps.Clock.Now().UTC(),
		Stage:   progress.StagePageDone,
		Item:    r.item.ID,
		Page:    r.page,
		Records: r.lastNew,
	})

	if r.page >= r.pages {
		return stateItemDone
	}
	if err := e.deps.Policy.PaceWait(ctx, r.page); err != nil {
		return stateItemDone
	}
	r.page++
	return stateFetching
}

// doBackoff counts the failure and either waits for another attempt at the
// same page or abandons the item.
func (e *Engine) doBackoff(ctx context.Context, r *run, result *crawler.CrawlResult) state {
	r.retries++
	result.Retries++
	e.emit(progress.Event{
		RunID: r.runID,
		TS:    e.deps.Clock.Now().UTC(),
		Stage: progress.StagePageRetry,
		Item:  r.item.ID,
		Page:  r.page,
		Note:  errText(r.lastErr),
	})

	if r.retries > e.cfg.MaxRetries {
		// Later pages are not attempted: a run of failures on one page
		// suggests end-of-data or a soft block that item-level persistence
		// will not fix. Partial data beats none.
		e.deps.Logger.Warn("abandoning item after repeated page failures",
			zap.String("item", r.item.ID),
			zap.Int("page", r.page),
			zap.Int("retries", r.retries-1),
			zap.Error(r.lastErr))
		e.archivePage(r)
		return stateItemDone
	}
	if err := e.deps.Policy.BackoffWait(ctx, r.retries); err != nil {
		return stateItemDone
	}
	return stateFetching
}

// archivePage stores the last unparseable body so selector drift can be
// diagnosed offline.
func (e *Engine) archivePage(r *run) {
	if e.deps.Archive == nil || len(r.lastBody) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s/page-%d.html", r.runID, r.item.ID, r.page)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.deps.Archive.PutObject(ctx, path, "text/html; charset=utf-8", r.lastBody); err != nil {
		e.deps.Logger.Warn("page archive failed", zap.String("path", path), zap.Error(err))
	}
}

func (e *Engine) emit(evt progress.Event) {
	if e.deps.Emitter == nil {
		return
	}
	e.deps.Emitter.Emit(evt)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
