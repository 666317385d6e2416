package crawler

import (
	"context"
	"time"
)

// Fetcher issues one bounded HTTP GET and returns the page body. Non-2xx
// responses surface as *StatusError; network failures as TransientError or
// the underlying error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, err error)
}

// Parser turns raw page content into structured records and page-level
// signals. All knowledge of the remote site's markup lives behind this
// contract; the engine only branches on its structured returns.
type Parser interface {
	// ExtractRecords returns the validated reviews found on the page, in
	// source order. An empty slice with nil error is a legitimate answer.
	ExtractRecords(page []byte) ([]ReviewRecord, error)
	// ExtractTotalCount returns the pagination-summary review total, or
	// ok=false when no summary is present.
	ExtractTotalCount(page []byte) (n int, ok bool)
	// ExtractLanguageCount returns the language-selector count for lang, or
	// ok=false when the selector control is absent.
	ExtractLanguageCount(page []byte, lang string) (n int, ok bool)
	// IsTargetLanguageView reports whether the page is confirmed to be
	// filtered to lang.
	IsTargetLanguageView(page []byte, lang string) bool
}

// ListingParser extracts attraction entries from a region listing page.
// Consumed by discovery only.
type ListingParser interface {
	ExtractItems(page []byte) ([]WorkItem, error)
	// NextPageURL returns the absolute URL of the next listing page, or
	// ok=false on the last page.
	NextPageURL(page []byte, current string) (next string, ok bool)
}

// RatePolicy supplies the two delay schedules of the crawl loop. Both waits
// must return early when the context is cancelled.
type RatePolicy interface {
	// PaceWait sleeps the happy-path cadence after a successful page. The
	// page number is the one just completed; milestone pages earn longer
	// pauses.
	PaceWait(ctx context.Context, page int) error
	// BackoffWait sleeps the recovery cadence after a failed attempt.
	// retry is 1-based.
	BackoffWait(ctx context.Context, retry int) error
}

// MetricsResolver determines review counts for one work item ahead of the
// page walk.
type MetricsResolver interface {
	Resolve(ctx context.Context, item WorkItem, defaultCount int) LanguageMetrics
}

// Analyzer classifies one review's text. Applied post-crawl.
type Analyzer interface {
	Analyze(text string) SentimentResult
}

// ResultStore persists finished crawl results.
type ResultStore interface {
	SaveResult(ctx context.Context, runID string, result CrawlResult) error
}

// Publisher emits a run-completion event to an external system.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (id string, err error)
}

// BlobStore archives raw page bodies for offline diagnosis.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (uri string, err error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() string
}
