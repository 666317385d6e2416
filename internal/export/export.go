// Package export writes finished crawl results to flat files for downstream
// analysis. Two formats are produced side by side: CSV for spreadsheet use
// and JSONL for pipeline ingestion.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

var csvHeader = []string{
	"item_id", "item_name", "region", "author", "title", "text", "rating",
	"written_date", "visit_date", "location", "contributions", "companion",
	"sentiment_label", "sentiment_score",
}

// Exporter writes one run's reviews to <dir>/<runID>/reviews.{csv,jsonl}.
// Safe for concurrent use; results from parallel items interleave at row
// granularity.
type Exporter struct {
	csv   *CSVWriter
	jsonl *JSONLWriter
	mu    sync.Mutex
}

// New opens both output files for a run.
func New(dir, runID string) (*Exporter, error) {
	base := filepath.Join(dir, runID)

	cw, err := NewCSVWriter(filepath.Join(base, "reviews.csv"))
	if err != nil {
		return nil, fmt.Errorf("open csv export: %w", err)
	}
	jw, err := NewJSONLWriter(filepath.Join(base, "reviews.jsonl"))
	if err != nil {
		cw.Close()
		return nil, fmt.Errorf("open jsonl export: %w", err)
	}
	return &Exporter{csv: cw, jsonl: jw}, nil
}

// WriteResult appends every record of one finished item to both outputs.
func (e *Exporter) WriteResult(result crawler.CrawlResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.csv.WriteResult(result); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	if err := e.jsonl.WriteResult(result); err != nil {
		return fmt.Errorf("jsonl export: %w", err)
	}
	return nil
}

// Close flushes and closes both outputs.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cerr := e.csv.Close()
	jerr := e.jsonl.Close()
	if cerr != nil {
		return fmt.Errorf("close csv export: %w", cerr)
	}
	if jerr != nil {
		return fmt.Errorf("close jsonl export: %w", jerr)
	}
	return nil
}

// CSVWriter flattens review records into CSV rows.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates the file and writes the header row.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVWriter{file: f, writer: w}, nil
}

// WriteResult appends one row per review record.
func (cw *CSVWriter) WriteResult(result crawler.CrawlResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, rec := range result.Records {
		label, score := "", ""
		if rec.Sentiment != nil {
			label = rec.Sentiment.Label
			score = strconv.Itoa(rec.Sentiment.Score)
		}
		row := []string{
			result.Item.ID,
			result.Item.Name,
			result.Item.Region,
			rec.Author,
			rec.Title,
			rec.Text,
			strconv.FormatFloat(rec.Rating, 'f', 1, 64),
			rec.WrittenDate,
			rec.VisitDate,
			rec.Location,
			strconv.Itoa(rec.Contributions),
			rec.Companion,
			label,
			score,
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv rows: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// jsonlRow is the export shape: record fields plus item identity.
type jsonlRow struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Region   string `json:"region,omitempty"`
	crawler.ReviewRecord
}

// JSONLWriter writes newline-delimited JSON records.
type JSONLWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLWriter creates the file and its buffered encoder.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create jsonl file: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &JSONLWriter{file: f, writer: buf, encoder: json.NewEncoder(buf)}, nil
}

// WriteResult appends one JSON line per review record.
func (jw *JSONLWriter) WriteResult(result crawler.CrawlResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range result.Records {
		row := jsonlRow{
			ItemID:       result.Item.ID,
			ItemName:     result.Item.Name,
			Region:       result.Item.Region,
			ReviewRecord: rec,
		}
		if err := jw.encoder.Encode(row); err != nil {
			return fmt.Errorf("encode jsonl row: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return jw.file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	return nil
}
