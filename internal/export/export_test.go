package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

func sampleResult() crawler.CrawlResult {
	return crawler.CrawlResult{
		Item: crawler.WorkItem{ID: "fort-1", Name: "Old Fort", Region: "coast"},
		Records: []crawler.ReviewRecord{
			{
				Author:      "Traveler99",
				Title:       "Wonderful afternoon",
				Text:        "Great views, would return.",
				Rating:      4,
				WrittenDate: "March 15, 2024",
				Sentiment:   &crawler.SentimentResult{Label: "POSITIVE", Score: 3},
			},
			{
				Author:      "QuietWalker",
				Title:       "Best day of the trip",
				Text:        "Bring water.",
				Rating:      5,
				WrittenDate: "January 2, 2024",
			},
		},
		Status:   crawler.StatusCompleted,
		Started:  time.Now(),
		Duration: time.Second,
	}
}

func TestExporterWritesBothFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exp, err := New(dir, "run-1")
	require.NoError(t, err)

	require.NoError(t, exp.WriteResult(sampleResult()))
	require.NoError(t, exp.Close())

	// CSV: header plus one row per record.
	f, err := os.Open(filepath.Join(dir, "run-1", "reviews.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, csvHeader, rows[0])
	require.Equal(t, "fort-1", rows[1][0])
	require.Equal(t, "4.0", rows[1][6])
	require.Equal(t, "POSITIVE", rows[1][12])
	require.Equal(t, "", rows[2][12])

	// JSONL: one parseable object per line.
	jf, err := os.Open(filepath.Join(dir, "run-1", "reviews.jsonl"))
	require.NoError(t, err)
	defer jf.Close()

	var lines []jsonlRow
	sc := bufio.NewScanner(jf)
	for sc.Scan() {
		var row jsonlRow
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		lines = append(lines, row)
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)
	require.Equal(t, "fort-1", lines[0].ItemID)
	require.Equal(t, "Traveler99", lines[0].Author)
	require.NotNil(t, lines[0].Sentiment)
	require.Nil(t, lines[1].Sentiment)
}

func TestExporterEmptyResultWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exp, err := New(dir, "run-2")
	require.NoError(t, err)

	res := sampleResult()
	res.Records = nil
	require.NoError(t, exp.WriteResult(res))
	require.NoError(t, exp.Close())

	f, err := os.Open(filepath.Join(dir, "run-2", "reviews.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
