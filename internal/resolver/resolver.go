// Package resolver determines how many target-language reviews a work item
// has, and therefore how many pages the engine should walk.
package resolver

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

// Config tunes the resolver.
type Config struct {
	// Language is the target review language code.
	Language string
	// DiscrepancyTolerance is the absolute gap between the pagination total
	// and the selector count past which a warning is logged.
	DiscrepancyTolerance int
	// CacheSize bounds the memoisation cache. Zero disables caching.
	CacheSize int
}

// Resolver fetches the language-forced first page once and ranks the page's
// count signals. It never returns an error; a failed fetch degrades to the
// caller's default, which downstream treats like "no reviews in the target
// language".
type Resolver struct {
	fetcher crawler.Fetcher
	parser  crawler.Parser
	cfg     Config
	cache   *lru.Cache[string, crawler.LanguageMetrics]
	logger  *zap.Logger
}

// New builds a Resolver.
func New(fetcher crawler.Fetcher, parser crawler.Parser, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.DiscrepancyTolerance <= 0 {
		cfg.DiscrepancyTolerance = 10
	}
	var cache *lru.Cache[string, crawler.LanguageMetrics]
	if cfg.CacheSize > 0 {
		// lru.New only fails on a non-positive size.
		cache, _ = lru.New[string, crawler.LanguageMetrics](cfg.CacheSize)
	}
	return &Resolver{
		fetcher: fetcher,
		parser:  parser,
		cfg:     cfg,
		cache:   cache,
		logger:  logger.Named("resolver"),
	}
}

// Resolve returns the review metrics for item. defaultCount seeds the
// fallback when the page offers no usable signal or cannot be fetched.
func (r *Resolver) Resolve(ctx context.Context, item crawler.WorkItem, defaultCount int) crawler.LanguageMetrics {
	langURL := crawler.LanguageURL(item.URL, r.cfg.Language)

	if r.cache != nil {
		if m, ok := r.cache.Get(langURL); ok {
			return m
		}
	}

	body, err := r.fetcher.Fetch(ctx, langURL)
	if err != nil {
		r.logger.Warn("metrics fetch failed, using default count",
			zap.String("item", item.ID),
			zap.Int("default", defaultCount),
			zap.Error(err))
		return crawler.LanguageMetrics{
			TotalReviews:  defaultCount,
			TargetReviews: 0,
			TargetPages:   0,
			Source:        crawler.SourceNone,
		}
	}

	m := r.rank(body, item, defaultCount)
	if r.cache != nil {
		r.cache.Add(langURL, m)
	}
	return m
}

// rank applies the signal priority: confirmed pagination total, then
// language-selector count, then unverified pagination total, then the
// caller's default, then zero.
func (r *Resolver) rank(page []byte, item crawler.WorkItem, defaultCount int) crawler.LanguageMetrics {
	total, totalOK := r.parser.ExtractTotalCount(page)
	selCount, selOK := r.parser.ExtractLanguageCount(page, r.cfg.Language)
	confirmed := r.parser.IsTargetLanguageView(page, r.cfg.Language)

	target := 0
	source := crawler.SourceNone
	switch {
	case totalOK && confirmed:
		target, source = total, crawler.SourceConfirmedPagination
	case selOK:
		target, source = selCount, crawler.SourceLanguageSelector
	case totalOK:
		target, source = total, crawler.SourceUnverifiedPagination
		r.logger.Warn("language view unconfirmed, using pagination total as-is",
			zap.String("item", item.ID),
			zap.Int("total", total))
	case defaultCount > 0:
		target, source = defaultCount, crawler.SourceCallerDefault
	}

	if totalOK && selOK {
		if diff := abs(total - selCount); diff > r.cfg.DiscrepancyTolerance {
			r.logger.Warn("count signals disagree",
				zap.String("item", item.ID),
				zap.Int("pagination_total", total),
				zap.Int("selector_count", selCount),
				zap.Int("difference", diff))
		}
	}

	allLang := item.ReportedTotal
	if allLang == 0 && totalOK {
		allLang = total
	}
	if allLang == 0 {
		allLang = defaultCount
	}

	return crawler.LanguageMetrics{
		TotalReviews:  allLang,
		TargetReviews: target,
		TargetPages:   crawler.PagesFor(target),
		Source:        source,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
