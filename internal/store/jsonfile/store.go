// Package jsonfile persists crawl results into a single consolidated JSON
// document on local disk, grouped region then attraction. Suits single-node
// deployments where a database is overkill and the dataset must stay
// human-inspectable.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

const defaultRegion = "unassigned"

// Document is the on-disk root.
type Document struct {
	Regions []*Region `json:"regions"`
	// UpdatedAt is the last successful save.
	UpdatedAt time.Time `json:"updated_at"`
}

// Region groups attractions.
type Region struct {
	Name        string        `json:"region_name"`
	Attractions []*Attraction `json:"attractions"`
	LastScraped *time.Time    `json:"last_reviews_scrape_date,omitempty"`
}

// Attraction holds one item's accumulated reviews across runs.
type Attraction struct {
	ID            string     `json:"id"`
	Name          string     `json:"attraction_name"`
	URL           string     `json:"url"`
	ReportedTotal int        `json:"reviews_count,omitempty"`
	TargetCount   int        `json:"target_reviews_count,omitempty"`
	ScrapedCount  int        `json:"scraped_reviews_count"`
	Status        string     `json:"status,omitempty"`
	LastRunID     string     `json:"last_run_id,omitempty"`
	LastScraped   *time.Time `json:"last_reviews_scrape_date,omitempty"`

	Reviews []crawler.ReviewRecord `json:"reviews"`
}

// Store implements crawler.ResultStore over one JSON file. Writes are
// serialized; each save rewrites the whole document via a temp file and
// rename so readers never observe a torn write.
type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	doc *Document
}

// New opens (or lazily creates) the document at path.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger.Named("jsonfile")}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = &Document{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode store file %s: %w", s.path, err)
	}
	s.doc = &doc
	return nil
}

// SaveResult merges one finished item into the document and persists it.
// Records already present keep their stored form; only unseen identity keys
// are appended.
func (s *Store) SaveResult(ctx context.Context, runID string, result crawler.CrawlResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	region := s.findOrCreateRegion(result.Item.Region)
	attr := findOrCreateAttraction(region, result.Item)

	added := mergeReviews(attr, result.Records)
	attr.ScrapedCount = len(attr.Reviews)
	attr.Status = string(result.Status)
	attr.LastRunID = runID
	attr.LastScraped = &now
	if result.Metrics.TargetReviews > 0 {
		attr.TargetCount = result.Metrics.TargetReviews
	}
	if result.Metrics.TotalReviews > 0 {
		attr.ReportedTotal = result.Metrics.TotalReviews
	}
	region.LastScraped = &now
	s.doc.UpdatedAt = now

	if err := s.flush(); err != nil {
		return err
	}
	s.logger.Debug("result saved",
		zap.String("item", result.Item.ID),
		zap.Int("new_records", added),
		zap.Int("stored_records", attr.ScrapedCount))
	return nil
}

func (s *Store) findOrCreateRegion(name string) *Region {
	if name == "" {
		name = defaultRegion
	}
	for _, r := range s.doc.Regions {
		if r.Name == name {
			return r
		}
	}
	r := &Region{Name: name}
	s.doc.Regions = append(s.doc.Regions, r)
	return r
}

func findOrCreateAttraction(region *Region, item crawler.WorkItem) *Attraction {
	for _, a := range region.Attractions {
		if a.URL == item.URL || (item.ID != "" && a.ID == item.ID) {
			return a
		}
	}
	a := &Attraction{
		ID:            item.ID,
		Name:          item.Name,
		URL:           item.URL,
		ReportedTotal: item.ReportedTotal,
	}
	region.Attractions = append(region.Attractions, a)
	return a
}

// mergeReviews appends records whose identity key is not yet stored and
// returns how many were added.
func mergeReviews(attr *Attraction, records []crawler.ReviewRecord) int {
	seen := make(map[crawler.RecordKey]struct{}, len(attr.Reviews))
	for _, rec := range attr.Reviews {
		seen[rec.Key()] = struct{}{}
	}
	added := 0
	for _, rec := range records {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		attr.Reviews = append(attr.Reviews, rec)
		added++
	}
	return added
}

// flush writes the document atomically.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".reviews-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// WorkItems returns the stored attractions of one region (all regions when
// region is empty) as schedulable work items. KnownFetched reflects what is
// already persisted so the scheduler can prioritize stale items.
func (s *Store) WorkItems(region string) []crawler.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []crawler.WorkItem
	for _, r := range s.doc.Regions {
		if region != "" && r.Name != region {
			continue
		}
		for _, a := range r.Attractions {
			items = append(items, crawler.WorkItem{
				ID:            a.ID,
				Name:          a.Name,
				URL:           a.URL,
				Region:        r.Name,
				ReportedTotal: a.ReportedTotal,
				KnownFetched:  a.ScrapedCount,
			})
		}
	}
	return items
}
