// Package postgres persists crawl results into Postgres, one row per review.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool behind the store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store implements crawler.ResultStore over a reviews table. Rows carry the
// record's identity key so re-crawls are idempotent via ON CONFLICT.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Store backed by a fresh connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "reviews"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "reviews"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveResult inserts the result's records. Rows whose (item_id, record_key)
// already exist are left untouched, so the first stored form of a review wins.
func (s *Store) SaveResult(ctx context.Context, runID string, result crawler.CrawlResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if result.Item.ID == "" {
		return fmt.Errorf("item id is required")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	item_id,
	item_name,
	region,
	record_key,
	author,
	title,
	review_text,
	rating,
	written_date,
	visit_date,
	author_location,
	contributions,
	companion,
	sentiment_label,
	sentiment_score,
	crawl_status,
	stored_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (item_id, record_key) DO NOTHING`, s.table)

	storedAt := time.Now().UTC()
	for _, rec := range result.Records {
		var label *string
		var score *int
		if rec.Sentiment != nil {
			label = &rec.Sentiment.Label
			score = &rec.Sentiment.Score
		}
		args := []any{
			runID,
			result.Item.ID,
			result.Item.Name,
			result.Item.Region,
			string(rec.Key()),
			rec.Author,
			rec.Title,
			rec.Text,
			rec.Rating,
			rec.WrittenDate,
			rec.VisitDate,
			rec.Location,
			rec.Contributions,
			rec.Companion,
			label,
			score,
			string(result.Status),
			storedAt,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert review row: %w", err)
		}
	}
	return nil
}
