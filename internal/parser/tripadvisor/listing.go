package tripadvisor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

// ListingParser extracts attraction entries from a region's "things to do"
// listing. Satisfies crawler.ListingParser.
type ListingParser struct{}

// NewListingParser builds a ListingParser.
func NewListingParser() *ListingParser {
	return &ListingParser{}
}

// ExtractItems returns the attractions linked from the listing page, one
// WorkItem per distinct review URL.
func (l *ListingParser) ExtractItems(page []byte) ([]crawler.WorkItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var items []crawler.WorkItem
	seen := make(map[string]struct{})
	doc.Find(`a[href*="Attraction_Review"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, "-Reviews-") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		name := text(link.Find("h3").First())
		if name == "" {
			name = text(link)
		}
		items = append(items, crawler.WorkItem{
			ID:            crawler.SlugID(href),
			Name:          stripRank(name),
			URL:           href,
			ReportedTotal: reviewCountNear(link),
		})
	})
	return items, nil
}

// stripRank removes the "12." ordinal prefix listing cards carry.
func stripRank(name string) string {
	if i := strings.Index(name, "."); i > 0 && i < 5 {
		prefix := name[:i]
		if strings.Trim(prefix, "0123456789") == "" {
			return strings.TrimSpace(name[i+1:])
		}
	}
	return name
}

// reviewCountNear pulls the card's review-count bubble, when present.
func reviewCountNear(link *goquery.Selection) int {
	card := link.Closest("article")
	if card.Length() == 0 {
		card = link.Parent()
	}
	raw := text(card.Find(`span[aria-hidden="true"]`).First())
	if raw == "" {
		return 0
	}
	n, err := parseCount(raw)
	if err != nil {
		return 0
	}
	return n
}

// NextPageURL returns the absolute URL of the listing's next page.
func (l *ListingParser) NextPageURL(page []byte, current string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", false
	}

	href, ok := doc.Find(`a[aria-label="Next page"]`).First().Attr("href")
	if !ok || href == "" {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return href, true
	}
	next, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(next).String(), true
}
