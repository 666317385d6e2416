package crawler

import (
	"fmt"
	"strings"
	"time"
)

// PageSize is the number of reviews the remote site serves per listing page.
const PageSize = 10

// WorkItem is one unit of crawl work: a single attraction whose review
// listing should be walked. Items are immutable once handed to the
// coordinator.
type WorkItem struct {
	// ID is a stable identifier, typically derived from the URL slug.
	ID string `json:"id"`
	// Name is the attraction's display name.
	Name string `json:"name"`
	// URL is the canonical review-listing URL (first page, no offset marker).
	URL string `json:"url"`
	// Region groups attractions for persistence and export.
	Region string `json:"region,omitempty"`
	// ReportedTotal is the site-reported all-languages review count, if known.
	// It is approximate and only used as a resolver default.
	ReportedTotal int `json:"reported_total,omitempty"`
	// KnownFetched is how many target-language reviews a prior run already
	// persisted for this item. Used for scheduling priority, never for
	// skipping pages.
	KnownFetched int `json:"known_fetched,omitempty"`
	// DefaultCount overrides the engine's configured resolver default for
	// this item when positive. Stamped from the run request.
	DefaultCount int `json:"default_count,omitempty"`
}

// ReviewRecord is one extracted review. The engine only interprets the four
// identity fields (author, title, written date, rating); everything else is
// carried through untouched for the stores and exporters.
type ReviewRecord struct {
	Author        string  `json:"author"`
	Title         string  `json:"title"`
	Text          string  `json:"text"`
	Rating        float64 `json:"rating"`
	WrittenDate   string  `json:"written_date"`
	VisitDate     string  `json:"visit_date,omitempty"`
	Location      string  `json:"location,omitempty"`
	Contributions int     `json:"contributions,omitempty"`
	Companion     string  `json:"companion,omitempty"`
	Language      string  `json:"language,omitempty"`

	// Sentiment is filled in post-crawl by the analyzer, when enabled.
	Sentiment *SentimentResult `json:"sentiment,omitempty"`
}

// RecordKey is the composite natural key of a review. Two records with equal
// keys are the same review regardless of which page served them.
type RecordKey string

// Key derives the record's identity key. Author and title are case-folded
// and trimmed so cosmetic differences between pages do not defeat dedup.
func (r ReviewRecord) Key() RecordKey {
	return RecordKey(fmt.Sprintf("%s|%s|%s|%.1f",
		strings.ToLower(strings.TrimSpace(r.Author)),
		strings.ToLower(strings.TrimSpace(r.Title)),
		strings.TrimSpace(r.WrittenDate),
		r.Rating,
	))
}

// SentimentResult is the analyzer's classification of one review's text.
type SentimentResult struct {
	// Label is one of VERY_NEGATIVE, NEGATIVE, NEUTRAL, POSITIVE,
	// VERY_POSITIVE.
	Label string `json:"label"`
	// Score is the ordinal form of Label, 0 through 4.
	Score int `json:"score"`
}

// CrawlStatus is the terminal disposition of one work item.
type CrawlStatus string

const (
	// StatusCompleted means at least one review was collected and the item
	// terminated normally (including abandonment with partial data).
	StatusCompleted CrawlStatus = "completed"
	// StatusNoTargetReviews means the resolver found zero target-language
	// reviews, so no listing page was ever fetched.
	StatusNoTargetReviews CrawlStatus = "no_english_reviews"
	// StatusFailedNoReviews means pages were attempted but no review
	// survived validation and dedup.
	StatusFailedNoReviews CrawlStatus = "failed_no_reviews_found"
	// StatusFailed means the item's pipeline raised an unexpected error or
	// panicked; the coordinator caught it at the item boundary.
	StatusFailed CrawlStatus = "failed"
)

// LanguageMetrics is the resolver's answer for one work item.
type LanguageMetrics struct {
	// TotalReviews is the all-languages count, best effort.
	TotalReviews int `json:"total_reviews"`
	// TargetReviews is the target-language count the engine should plan for.
	TargetReviews int `json:"target_reviews"`
	// TargetPages is ceil(TargetReviews / PageSize); zero when TargetReviews
	// is zero.
	TargetPages int `json:"target_pages"`
	// Source names which signal produced TargetReviews.
	Source MetricsSource `json:"source"`
}

// MetricsSource identifies the signal a language count was resolved from, in
// descending trust order.
type MetricsSource string

const (
	SourceConfirmedPagination  MetricsSource = "confirmed_pagination"
	SourceLanguageSelector     MetricsSource = "language_selector"
	SourceUnverifiedPagination MetricsSource = "unverified_pagination"
	SourceCallerDefault        MetricsSource = "caller_default"
	SourceNone                 MetricsSource = "none"
)

// PagesFor converts a review count to a page count.
func PagesFor(reviews int) int {
	if reviews <= 0 {
		return 0
	}
	return (reviews + PageSize - 1) / PageSize
}

// CrawlResult is the terminal outcome for one work item. Exactly one is
// produced per submitted item, in submission order.
type CrawlResult struct {
	Item    WorkItem        `json:"item"`
	Status  CrawlStatus     `json:"status"`
	Metrics LanguageMetrics `json:"metrics"`
	// Records is the deduplicated review list in page order, then
	// within-page source order.
	Records []ReviewRecord `json:"records"`
	// PagesFetched counts successful page fetches, including the ones that
	// parsed to zero records.
	PagesFetched int `json:"pages_fetched"`
	// Retries counts backoff rounds across the whole item.
	Retries int `json:"retries"`
	// Error holds the captured failure description when Status is "failed".
	Error string `json:"error,omitempty"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// PageOutcome is what one fetch-and-parse attempt produced. Ephemeral;
// consumed within a single retry round.
type PageOutcome struct {
	Records []ReviewRecord
	// Err is non-nil for transport failures and parser errors. A nil Err
	// with zero Records is the empty-page case, which earns the same
	// bounded retries.
	Err error
}
