package discovery

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

func TestDiscoverWalksUntilLastPage(t *testing.T) {
	t.Parallel()

	parser := &fakeListing{
		itemsByURL: map[string][]crawler.WorkItem{
			"https://x.test/list":    {{ID: "a", URL: "https://x.test/a-Reviews-x.html"}, {ID: "b", URL: "https://x.test/b-Reviews-x.html"}},
			"https://x.test/list?p2": {{ID: "c", URL: "https://x.test/c-Reviews-x.html"}},
			"https://x.test/list?p3": {{ID: "d", URL: "https://x.test/d-Reviews-x.html"}},
		},
		next: map[string]string{
			"https://x.test/list":    "https://x.test/list?p2",
			"https://x.test/list?p2": "https://x.test/list?p3",
		},
	}
	d := New(&listingFetcher{}, parser, nil, nil)

	items, err := d.Discover(context.Background(), "https://x.test/list")
	require.NoError(t, err)
	require.Len(t, items, 4)
	require.Equal(t, "a", items[0].ID)
	require.Equal(t, "d", items[3].ID)
}

func TestDiscoverDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	parser := &fakeListing{
		itemsByURL: map[string][]crawler.WorkItem{
			"https://x.test/list":    {{ID: "a", URL: "u1"}},
			"https://x.test/list?p2": {{ID: "a", URL: "u1"}, {ID: "b", URL: "u2"}},
		},
		next: map[string]string{"https://x.test/list": "https://x.test/list?p2"},
	}
	d := New(&listingFetcher{}, parser, nil, nil)

	items, err := d.Discover(context.Background(), "https://x.test/list")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestDiscoverReturnsPartialOnFetchError(t *testing.T) {
	t.Parallel()

	parser := &fakeListing{
		itemsByURL: map[string][]crawler.WorkItem{
			"https://x.test/list": {{ID: "a", URL: "u1"}},
		},
		next: map[string]string{"https://x.test/list": "https://x.test/broken"},
	}
	d := New(&listingFetcher{failURL: "https://x.test/broken"}, parser, nil, nil)

	items, err := d.Discover(context.Background(), "https://x.test/list")
	require.Error(t, err)
	require.Len(t, items, 1)
}

func TestOrderPriorities(t *testing.T) {
	t.Parallel()

	items := []crawler.WorkItem{
		{ID: "zero", ReportedTotal: 0, KnownFetched: 0},
		{ID: "uptodate", ReportedTotal: 40, KnownFetched: 40},
		{ID: "few", ReportedTotal: 60, KnownFetched: 30},
		{ID: "many", ReportedTotal: 500, KnownFetched: 100},
		{ID: "fresh", ReportedTotal: 80, KnownFetched: 0},
	}
	ordered := Order(items)

	ids := make([]string, len(ordered))
	for i, it := range ordered {
		ids[i] = it.ID
	}
	require.Equal(t, []string{"fresh", "many", "few", "uptodate", "zero"}, ids)
	// Input slice untouched.
	require.Equal(t, "zero", items[0].ID)
}

func TestOrderStableWithinPriority(t *testing.T) {
	t.Parallel()

	items := []crawler.WorkItem{
		{ID: "fresh-1", ReportedTotal: 10},
		{ID: "fresh-2", ReportedTotal: 999},
		{ID: "fresh-3", ReportedTotal: 5},
	}
	ordered := Order(items)
	for i, it := range ordered {
		require.Equal(t, "fresh-"+strconv.Itoa(i+1), it.ID)
	}
}

type listingFetcher struct {
	failURL string
}

func (f *listingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if url == f.failURL {
		return nil, errors.New("listing fetch failed")
	}
	return []byte(url), nil
}

// fakeListing keys everything off the page body, which the fetcher sets to
// the URL itself.
type fakeListing struct {
	itemsByURL map[string][]crawler.WorkItem
	next       map[string]string
}

func (f *fakeListing) ExtractItems(page []byte) ([]crawler.WorkItem, error) {
	return f.itemsByURL[string(page)], nil
}

func (f *fakeListing) NextPageURL(page []byte, _ string) (string, bool) {
	next, ok := f.next[string(page)]
	return next, ok
}
