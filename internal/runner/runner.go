// Package runner executes accepted run requests end to end: discovery,
// ordering, the concurrent page walk, sentiment, persistence, export, and
// the completion notification.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/discovery"
	"github.com/ignacioe7/reviewcrawler/internal/export"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
	"github.com/ignacioe7/reviewcrawler/internal/queue"
	"github.com/ignacioe7/reviewcrawler/internal/store/memory"
)

// ItemRunner fans a run's items out to the engines; the coordinator
// satisfies it.
type ItemRunner interface {
	Run(ctx context.Context, runID string, items []crawler.WorkItem) []crawler.CrawlResult
}

// Lister expands a listing URL into work items; discovery satisfies it.
type Lister interface {
	Discover(ctx context.Context, startURL string) ([]crawler.WorkItem, error)
}

// Config controls optional runner features.
type Config struct {
	// Topic is the completion-notification topic. Empty disables publishing.
	Topic string
	// ExportDir enables per-run CSV/JSONL exports when non-empty.
	ExportDir string
}

// Deps are the runner's collaborators. Store and Analyzer may be nil.
type Deps struct {
	Queue       *queue.Queue
	Runs        *memory.RunStore
	Coordinator ItemRunner
	Lister      Lister
	Analyzer    crawler.Analyzer
	Store       crawler.ResultStore
	Publisher   crawler.Publisher
	Emitter     progress.Emitter
	Logger      *zap.Logger
}

// Runner consumes the run queue until its context ends.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New builds a Runner.
func New(cfg Config, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger.Named("runner")}
}

// Run blocks, executing queued runs one at a time until ctx finishes or the
// queue closes. Concurrency lives inside a run, not across runs, so two
// runs never compete for the crawl budget.
func (r *Runner) Run(ctx context.Context) {
	for {
		req, err := r.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			r.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		r.execute(ctx, req)
	}
}

// RunOnce executes a single request immediately, bypassing the queue. Used
// by the one-shot CLI mode.
func (r *Runner) RunOnce(ctx context.Context, req crawler.RunRequest) {
	r.execute(ctx, req)
}

// RunSummary is the completion-notification payload.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Region   string        `json:"region,omitempty"`
	Items    int           `json:"items"`
	Records  int           `json:"records"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func (r *Runner) execute(ctx context.Context, req crawler.RunRequest) {
	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.deps.Runs.AttachCancel(req.RunID, cancel)

	r.emit(progress.Event{RunID: req.RunID, TS: time.Now().UTC(), Stage: progress.StageRunStart})

	items, err := r.resolveItems(runCtx, req)
	if err != nil && len(items) == 0 {
		r.logger.Error("discovery failed", zap.String("run", req.RunID), zap.Error(err))
		r.emit(progress.Event{
			RunID: req.RunID,
			TS:    time.Now().UTC(),
			Stage: progress.StageRunError,
			Note:  err.Error(),
		})
		return
	}
	if err != nil {
		// Partial discovery still yields a usable run.
		r.logger.Warn("discovery incomplete",
			zap.String("run", req.RunID),
			zap.Int("items", len(items)),
			zap.Error(err))
	}

	results := r.deps.Coordinator.Run(runCtx, req.RunID, discovery.Order(items))
	r.annotate(results)

	exporter := r.openExporter(req.RunID)
	failed := 0
	records := 0
	for _, res := range results {
		records += len(res.Records)
		if res.Status == crawler.StatusFailed {
			failed++
		}
		r.persist(ctx, req.RunID, res, exporter)
	}
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			r.logger.Warn("export close failed", zap.String("run", req.RunID), zap.Error(err))
		}
	}

	summary := RunSummary{
		RunID:    req.RunID,
		Region:   req.Region,
		Items:    len(results),
		Records:  records,
		Failed:   failed,
		Duration: time.Since(start),
	}
	r.publish(ctx, summary)

	r.emit(progress.Event{RunID: req.RunID, TS: time.Now().UTC(), Stage: progress.StageRunDone})
	r.logger.Info("run finished",
		zap.String("run", req.RunID),
		zap.Int("items", summary.Items),
		zap.Int("records", summary.Records),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
}

// resolveItems prefers explicit items; a listing URL is expanded through
// discovery. The run's region label and resolver default are stamped onto
// every item.
func (r *Runner) resolveItems(ctx context.Context, req crawler.RunRequest) ([]crawler.WorkItem, error) {
	items := req.Items
	var err error
	if len(items) == 0 && req.ListingURL != "" {
		if r.deps.Lister == nil {
			return nil, fmt.Errorf("run %s: listing URL given but discovery is not configured", req.RunID)
		}
		items, err = r.deps.Lister.Discover(ctx, req.ListingURL)
	}
	if len(items) == 0 && err == nil {
		err = fmt.Errorf("run %s: no work items", req.RunID)
	}
	if req.Region != "" {
		for i := range items {
			if items[i].Region == "" {
				items[i].Region = req.Region
			}
		}
	}
	if req.DefaultCount > 0 {
		for i := range items {
			if items[i].DefaultCount == 0 {
				items[i].DefaultCount = req.DefaultCount
			}
		}
	}
	return items, err
}

// annotate fills in sentiment when an analyzer is configured.
func (r *Runner) annotate(results []crawler.CrawlResult) {
	if r.deps.Analyzer == nil {
		return
	}
	for ri := range results {
		recs := results[ri].Records
		for i := range recs {
			combined := strings.TrimSpace(recs[i].Title + ". " + recs[i].Text)
			sentiment := r.deps.Analyzer.Analyze(combined)
			recs[i].Sentiment = &sentiment
		}
	}
}

func (r *Runner) openExporter(runID string) *export.Exporter {
	if r.cfg.ExportDir == "" {
		return nil
	}
	exporter, err := export.New(r.cfg.ExportDir, runID)
	if err != nil {
		r.logger.Warn("export disabled for run", zap.String("run", runID), zap.Error(err))
		return nil
	}
	return exporter
}

// persist writes one result to the registry, the durable store, and the
// exporter. Store failures are logged, not fatal; the registry always gets
// the result so the API can serve it.
func (r *Runner) persist(ctx context.Context, runID string, res crawler.CrawlResult, exporter *export.Exporter) {
	if err := r.deps.Runs.SaveResult(ctx, runID, res); err != nil {
		r.logger.Warn("registry save failed", zap.String("item", res.Item.ID), zap.Error(err))
	}
	if r.deps.Store != nil {
		if err := r.deps.Store.SaveResult(ctx, runID, res); err != nil {
			r.logger.Error("store save failed",
				zap.String("run", runID),
				zap.String("item", res.Item.ID),
				zap.Error(err))
		}
	}
	if exporter != nil {
		if err := exporter.WriteResult(res); err != nil {
			r.logger.Warn("export write failed", zap.String("item", res.Item.ID), zap.Error(err))
		}
	}
}

func (r *Runner) publish(ctx context.Context, summary RunSummary) {
	if r.deps.Publisher == nil || r.cfg.Topic == "" {
		return
	}
	if _, err := r.deps.Publisher.Publish(ctx, r.cfg.Topic, summary); err != nil {
		r.logger.Warn("completion publish failed", zap.String("run", summary.RunID), zap.Error(err))
	}
}

func (r *Runner) emit(evt progress.Event) {
	if r.deps.Emitter == nil {
		return
	}
	r.deps.Emitter.Emit(evt)
}
