package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus metrics: run and item
// lifecycle counters, page throughput, and record volume.
type PrometheusSink struct {
	runsStarted prometheus.Counter
	runsDone    *prometheus.CounterVec
	runsActive  prometheus.Gauge

	itemsDone    *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec

	pagesDone   prometheus.Counter
	pageRetries prometheus.Counter
	records     prometheus.Counter

	active *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry;
// nil means the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewcrawler_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcrawler_runs_completed_total",
			Help: "Crawl runs finished, partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviewcrawler_runs_active",
			Help: "Crawl runs currently executing.",
		}),
		itemsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcrawler_items_completed_total",
			Help: "Work items finished, partitioned by crawl status.",
		}, []string{"status"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewcrawler_item_duration_seconds",
			Help:    "Wall time per finished work item.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),
		pagesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewcrawler_pages_total",
			Help: "Review pages fetched and parsed successfully.",
		}),
		pageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewcrawler_page_retries_total",
			Help: "Backoff rounds taken across all items.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewcrawler_records_total",
			Help: "Unique review records collected.",
		}),
		active: newRunTracker(),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted, s.runsDone, s.runsActive,
		s.itemsDone, s.itemDuration,
		s.pagesDone, s.pageRetries, s.records,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consume(evt)
	}
	return nil
}

func (s *PrometheusSink) consume(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.active.start(evt.RunID) {
			s.runsActive.Inc()
		}
	case progress.StageRunDone:
		s.runsDone.WithLabelValues("success").Inc()
		if s.active.complete(evt.RunID) {
			s.runsActive.Dec()
		}
	case progress.StageRunError:
		s.runsDone.WithLabelValues("error").Inc()
		if s.active.complete(evt.RunID) {
			s.runsActive.Dec()
		}
	case progress.StageItemDone:
		status := evt.Status
		if status == "" {
			status = "unknown"
		}
		s.itemsDone.WithLabelValues(status).Inc()
		if evt.Dur > 0 {
			s.itemDuration.WithLabelValues(status).Observe(evt.Dur.Seconds())
		}
		if evt.Records > 0 {
			s.records.Add(float64(evt.Records))
		}
	case progress.StagePageDone:
		s.pagesDone.Inc()
	case progress.StagePageRetry:
		s.pageRetries.Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
