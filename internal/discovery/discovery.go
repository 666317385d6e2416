// Package discovery enumerates work items from a paginated attraction
// listing and orders them for crawling.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

// maxListingPages is a safety cap against a listing whose next-page link
// never disappears.
const maxListingPages = 200

// Discoverer walks listing pages until no next-page link remains.
type Discoverer struct {
	fetcher crawler.Fetcher
	parser  crawler.ListingParser
	policy  crawler.RatePolicy
	logger  *zap.Logger
}

// New builds a Discoverer. policy may be nil to walk without pacing.
func New(fetcher crawler.Fetcher, parser crawler.ListingParser, policy crawler.RatePolicy, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		fetcher: fetcher,
		parser:  parser,
		policy:  policy,
		logger:  logger.Named("discovery"),
	}
}

// Discover returns the work items found starting at startURL. On a fetch or
// parse failure it returns the items collected so far along with the error;
// cancellation returns the partial list with the context error.
func (d *Discoverer) Discover(ctx context.Context, startURL string) ([]crawler.WorkItem, error) {
	var items []crawler.WorkItem
	seen := make(map[string]struct{})

	url := startURL
	for page := 1; page <= maxListingPages; page++ {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		body, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			return items, fmt.Errorf("fetch listing page %d: %w", page, err)
		}
		found, err := d.parser.ExtractItems(body)
		if err != nil {
			return items, fmt.Errorf("parse listing page %d: %w", page, err)
		}
		for _, item := range found {
			if item.ID == "" {
				item.ID = crawler.SlugID(item.URL)
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
		}
		d.logger.Debug("listing page walked",
			zap.Int("page", page),
			zap.Int("found", len(found)),
			zap.Int("total", len(items)))

		next, ok := d.parser.NextPageURL(body, url)
		if !ok {
			break
		}
		url = next

		if d.policy != nil {
			if err := d.policy.PaceWait(ctx, page); err != nil {
				return items, err
			}
		}
	}
	return items, nil
}

// manyMissingThreshold splits "many missing" from "few missing" when
// ordering items.
const manyMissingThreshold = 50

// Order sorts items for crawling: never-scraped first, then items missing
// many reviews, then items missing a few, then up-to-date ones, and finally
// items the site reports as having no reviews at all. The sort is stable so
// listing order breaks ties.
func Order(items []crawler.WorkItem) []crawler.WorkItem {
	out := append([]crawler.WorkItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return priority(out[i]) < priority(out[j])
	})
	return out
}

func priority(item crawler.WorkItem) int {
	missing := item.ReportedTotal - item.KnownFetched
	switch {
	case item.ReportedTotal > 0 && item.KnownFetched == 0:
		return 1
	case missing > manyMissingThreshold:
		return 2
	case missing > 0:
		return 3
	case item.ReportedTotal > 0:
		return 4
	default:
		return 5
	}
}
