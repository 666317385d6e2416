package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
)

const itemURL = "https://www.example-travel.com/Attraction_Review-g1-d2-Reviews-Old_Fort-Town.html"

func testWorkItem() crawler.WorkItem {
	return crawler.WorkItem{ID: "old-fort", Name: "Old Fort", URL: itemURL}
}

func rec(author, title string) crawler.ReviewRecord {
	return crawler.ReviewRecord{Author: author, Title: title, WrittenDate: "2024-03-01", Rating: 4}
}

func newEngine(f *scriptFetcher, p *scriptParser, pages int, maxRetries int) (*Engine, *recordPolicy) {
	policy := &recordPolicy{}
	e := New(Deps{
		Fetcher:  f,
		Parser:   p,
		Policy:   policy,
		Resolver: fixedResolver{pages: pages},
	}, Config{Language: "en", MaxRetries: maxRetries})
	return e, policy
}

func TestCrawlHappyPathThreePages(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{}
	p := &scriptParser{pages: map[int][]crawler.ReviewRecord{
		1: {rec("a", "t1"), rec("b", "t2")},
		2: {rec("c", "t3")},
		3: {rec("d", "t4"), rec("e", "t5")},
	}}
	e, policy := newEngine(f, p, 3, 3)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Equal(t, crawler.StatusCompleted, res.Status)
	require.Len(t, res.Records, 5)
	require.Equal(t, 3, res.PagesFetched)
	require.Equal(t, 0, res.Retries)
	// Pacing runs after pages 1 and 2 but not after the final page.
	require.Equal(t, []int{1, 2}, policy.paces)
	require.Empty(t, policy.backoffs)
}

func TestCrawlPageURLSequence(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{}
	p := &scriptParser{pages: map[int][]crawler.ReviewRecord{
		1: {rec("a", "t1")},
		2: {rec("b", "t2")},
	}}
	e, _ := newEngine(f, p, 2, 3)
	e.Crawl(context.Background(), "run-1", testWorkItem())

	require.Len(t, f.urls, 2)
	require.Contains(t, f.urls[0], "filterLang=en")
	require.NotContains(t, f.urls[0], "-or")
	require.Contains(t, f.urls[1], "-Reviews-or10-")
}

func TestCrawlZeroPagesShortCircuits(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{}
	e, policy := newEngine(f, &scriptParser{}, 0, 3)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Equal(t, crawler.StatusNoTargetReviews, res.Status)
	require.Empty(t, res.Records)
	require.Zero(t, f.calls)
	require.Empty(t, policy.paces)
	require.Empty(t, policy.backoffs)
}

func TestCrawlEmptyPageRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	// Page 2 parses empty on attempts 1 and 2, succeeds on attempt 3.
	f := &scriptFetcher{}
	p := &scriptParser{
		pages: map[int][]crawler.ReviewRecord{
			1: {rec("a", "t1")},
			2: {rec("b", "t2")},
			3: {rec("c", "t3")},
		},
		emptyAttempts: map[int]int{2: 2},
	}
	e, policy := newEngine(f, p, 3, 3)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Equal(t, crawler.StatusCompleted, res.Status)
	require.Len(t, res.Records, 3)
	require.Equal(t, 2, res.Retries)
	require.Equal(t, []int{1, 2}, policy.backoffs)
}

func TestCrawlAbandonsPageAfterMaxRetries(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{failPages: map[int]error{2: errors.New("connection reset")}}
	p := &scriptParser{pages: map[int][]crawler.ReviewRecord{
		1: {rec("a", "t1"), rec("b", "t2")},
		3: {rec("c", "t3")},
	}}
	e, policy := newEngine(f, p, 3, 3)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	// Page 1 data survives; page 3 is never attempted.
	require.Equal(t, crawler.StatusCompleted, res.Status)
	require.Len(t, res.Records, 2)
	require.Equal(t, 1, res.PagesFetched)
	require.Equal(t, 4, res.Retries)
	require.Equal(t, []int{1, 2, 3}, policy.backoffs)
	for _, u := range f.urls {
		require.NotContains(t, u, "-or20-")
	}
}

func TestCrawlAllPagesFailNoRecords(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{failPages: map[int]error{1: errors.New("timeout")}}
	e, _ := newEngine(f, &scriptParser{}, 2, 1)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Equal(t, crawler.StatusFailedNoReviews, res.Status)
	require.Empty(t, res.Records)
}

func TestCrawlDedupAcrossPages(t *testing.T) {
	t.Parallel()

	shared := rec("dup", "same trip")
	shared.Text = "page one copy"
	later := rec("dup", "same trip")
	later.Text = "page two copy"

	f := &scriptFetcher{}
	p := &scriptParser{pages: map[int][]crawler.ReviewRecord{
		1: {shared, rec("a", "t1")},
		2: {later, rec("b", "t2")},
	}}
	e, _ := newEngine(f, p, 2, 3)

	res := e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Len(t, res.Records, 3)
	require.Equal(t, "page one copy", res.Records[0].Text)

	keys := make(map[crawler.RecordKey]struct{})
	for _, r := range res.Records {
		_, dup := keys[r.Key()]
		require.False(t, dup, "duplicate key in result")
		keys[r.Key()] = struct{}{}
	}
}

func TestCrawlCancellationPreservesRecords(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptFetcher{}
	p := &scriptParser{pages: map[int][]crawler.ReviewRecord{
		1: {rec("a", "t1")},
		2: {rec("b", "t2")},
	}}
	policy := &recordPolicy{onPace: cancel}
	e := New(Deps{
		Fetcher:  f,
		Parser:   p,
		Policy:   policy,
		Resolver: fixedResolver{pages: 5},
	}, Config{Language: "en", MaxRetries: 3})

	res := e.Crawl(ctx, "run-1", testWorkItem())
	require.Equal(t, crawler.StatusCompleted, res.Status)
	require.Len(t, res.Records, 1)
	// The cancelled pace wait stops the walk before page 2 is requested.
	require.Equal(t, 1, f.calls)
}

func TestCrawlEmitsProgressEvents(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{}
	p := &scriptParser{
		pages:         map[int][]crawler.ReviewRecord{1: {rec("a", "t1")}, 2: {rec("b", "t2")}},
		emptyAttempts: map[int]int{2: 1},
	}
	emitter := &captureEmitter{}
	e := New(Deps{
		Fetcher:  f,
		Parser:   p,
		Policy:   &recordPolicy{},
		Resolver: fixedResolver{pages: 2},
		Emitter:  emitter,
	}, Config{Language: "en", MaxRetries: 3})

	e.Crawl(context.Background(), "run-9", testWorkItem())

	stages := emitter.stages()
	require.Equal(t, []progress.Stage{
		progress.StagePageDone,
		progress.StagePageRetry,
		progress.StagePageDone,
	}, stages)
}

func TestCrawlArchivesBodyOnAbandon(t *testing.T) {
	t.Parallel()

	f := &scriptFetcher{}
	p := &scriptParser{
		pages:         map[int][]crawler.ReviewRecord{1: {rec("a", "t1")}},
		emptyAttempts: map[int]int{2: 99},
	}
	archive := &captureArchive{}
	e := New(Deps{
		Fetcher:  f,
		Parser:   p,
		Policy:   &recordPolicy{},
		Resolver: fixedResolver{pages: 3},
		Archive:  archive,
	}, Config{Language: "en", MaxRetries: 1})

	e.Crawl(context.Background(), "run-1", testWorkItem())
	require.Equal(t, []string{"run-1/old-fort/page-2.html"}, archive.paths)
}

func TestCrawlItemDefaultCountOverridesConfig(t *testing.T) {
	t.Parallel()

	resolver := &captureResolver{}
	e := New(Deps{
		Fetcher:  &scriptFetcher{},
		Parser:   &scriptParser{},
		Policy:   &recordPolicy{},
		Resolver: resolver,
	}, Config{Language: "en", DefaultCount: 40})

	item := testWorkItem()
	item.DefaultCount = 120
	e.Crawl(context.Background(), "run-dc", item)
	require.Equal(t, 120, resolver.gotDefault)

	// Without a per-item value the configured default is used.
	e.Crawl(context.Background(), "run-dc", testWorkItem())
	require.Equal(t, 40, resolver.gotDefault)
}

// scriptFetcher returns a synthetic body naming the requested page, or the
// scripted error for that page.
type scriptFetcher struct {
	mu        sync.Mutex
	calls     int
	urls      []string
	failPages map[int]error
}

func (f *scriptFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, url)
	page := pageOf(url)
	if err, ok := f.failPages[page]; ok {
		return nil, err
	}
	return []byte{byte(page)}, nil
}

func pageOf(url string) int {
	i := strings.Index(url, "-or")
	if i < 0 {
		return 1
	}
	j := i + 3
	k := j
	for k < len(url) && url[k] >= '0' && url[k] <= '9' {
		k++
	}
	off, _ := strconv.Atoi(url[j:k])
	return off/crawler.PageSize + 1
}

// scriptParser maps a page number to its records, optionally reporting the
// first N attempts of a page as empty.
type scriptParser struct {
	mu            sync.Mutex
	pages         map[int][]crawler.ReviewRecord
	emptyAttempts map[int]int
	attempts      map[int]int
}

func (p *scriptParser) ExtractRecords(body []byte) ([]crawler.ReviewRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	page := int(body[0])
	if p.attempts == nil {
		p.attempts = make(map[int]int)
	}
	p.attempts[page]++
	if p.attempts[page] <= p.emptyAttempts[page] {
		return nil, nil
	}
	return p.pages[page], nil
}

func (p *scriptParser) ExtractTotalCount([]byte) (int, bool) { return 0, false }

func (p *scriptParser) ExtractLanguageCount([]byte, string) (int, bool) { return 0, false }

func (p *scriptParser) IsTargetLanguageView([]byte, string) bool { return false }

type fixedResolver struct {
	pages int
}

// captureResolver records the default it was handed and reports no reviews.
type captureResolver struct {
	gotDefault int
}

func (r *captureResolver) Resolve(_ context.Context, _ crawler.WorkItem, defaultCount int) crawler.LanguageMetrics {
	r.gotDefault = defaultCount
	return crawler.LanguageMetrics{}
}

func (r fixedResolver) Resolve(context.Context, crawler.WorkItem, int) crawler.LanguageMetrics {
	return crawler.LanguageMetrics{
		TargetReviews: r.pages * crawler.PageSize,
		TargetPages:   r.pages,
		Source:        crawler.SourceConfirmedPagination,
	}
}

// recordPolicy records the schedule without sleeping.
type recordPolicy struct {
	mu       sync.Mutex
	paces    []int
	backoffs []int
	onPace   func()
}

func (p *recordPolicy) PaceWait(ctx context.Context, page int) error {
	p.mu.Lock()
	p.paces = append(p.paces, page)
	cb := p.onPace
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
	return ctx.Err()
}

func (p *recordPolicy) BackoffWait(ctx context.Context, retry int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backoffs = append(p.backoffs, retry)
	return ctx.Err()
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Stage)
	}
	return out
}

type captureArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *captureArchive) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}
