// Package tripadvisor extracts review records and page-level count signals
// from TripAdvisor attraction pages. All knowledge of the site's markup is
// confined here; the fallback chains mirror the several template variants
// the site serves.
package tripadvisor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

var (
	totalOfRe      = regexp.MustCompile(`of\s+([\d,]+)`)
	showingOfRe    = regexp.MustCompile(`(?is)showing.*?results.*?of.*?([\d,]+)`)
	ratingRe       = regexp.MustCompile(`^([\d.]+)\s+of`)
	langCountRe    = regexp.MustCompile(`\(([\d,]+)\)`)
	nonDigitRe     = regexp.MustCompile(`\D`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	writtenPrefix  = "Written "
	companionSplit = "•"
)

// languageNames maps language codes to the display names the site uses in
// its language selector.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"zh": "Chinese",
	"ja": "Japanese",
}

// Parser implements crawler.Parser for attraction review pages.
type Parser struct {
	logger *zap.Logger
}

// New builds a Parser.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.Named("parser")}
}

// ExtractRecords returns the validated reviews on the page in source order.
// Cards missing a title, text, or rating are dropped.
func (p *Parser) ExtractRecords(page []byte) ([]crawler.ReviewRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse review page: %w", err)
	}

	var out []crawler.ReviewRecord
	doc.Find(`div[data-automation="reviewCard"]`).Each(func(_ int, card *goquery.Selection) {
		rec := p.parseCard(card)
		if validate(rec) {
			out = append(out, rec)
		}
	})
	return out, nil
}

func (p *Parser) parseCard(card *goquery.Selection) crawler.ReviewRecord {
	return crawler.ReviewRecord{
		Author:        extractAuthor(card),
		Rating:        extractRating(card),
		Title:         extractTitle(card),
		Text:          extractText(card),
		Location:      extractLocation(card),
		Contributions: extractContributions(card),
		VisitDate:     extractVisitDate(card),
		WrittenDate:   extractWrittenDate(card),
		Companion:     extractCompanion(card),
	}
}

func extractAuthor(card *goquery.Selection) string {
	if name := text(card.Find("a.BMQDV.ukgoS").First()); name != "" {
		return name
	}
	if name := text(card.Find("span.fiohW").First()); name != "" {
		return name
	}
	return text(card.Find("a.BMQDV").First())
}

func extractRating(card *goquery.Selection) float64 {
	title := text(card.Find("svg.UctUV title, svg.evwcZ title").First())
	m := ratingRe.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return rating
}

func extractTitle(card *goquery.Selection) string {
	if title := text(card.Find("div.ncFvv span.yCeTE").First()); title != "" {
		return title
	}
	if title := text(card.Find("a.BMQDV span.yCeTE").First()); title != "" {
		return title
	}
	// Last resort: any title span outside the review body.
	title := card.Find("span.yCeTE").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("div.KxBGd").Length() == 0
	}).First()
	return text(title)
}

func extractText(card *goquery.Selection) string {
	return text(card.Find("div.KxBGd").First())
}

func extractLocation(card *goquery.Selection) string {
	loc := text(card.Find("div.vYLts span").First())
	// The first span sometimes holds the contribution count instead.
	if strings.ContainsAny(loc, "0123456789") {
		return ""
	}
	return loc
}

func extractContributions(card *goquery.Selection) int {
	var raw string
	card.Find("div.vYLts span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "contribut") {
			raw = s.Text()
			return false
		}
		return true
	})
	if raw == "" {
		return 0
	}
	n, _ := strconv.Atoi(nonDigitRe.ReplaceAllString(raw, ""))
	return n
}

func extractVisitDate(card *goquery.Selection) string {
	info := text(card.Find("div.RpeCd").First())
	if i := strings.Index(info, companionSplit); i >= 0 {
		return strings.TrimSpace(info[:i])
	}
	return info
}

func extractCompanion(card *goquery.Selection) string {
	info := text(card.Find("div.RpeCd").First())
	if i := strings.Index(info, companionSplit); i >= 0 {
		return strings.TrimSpace(info[i+len(companionSplit):])
	}
	return ""
}

func extractWrittenDate(card *goquery.Selection) string {
	raw := text(card.Find("div.TreSq div.ncFvv").First())
	return strings.TrimSpace(strings.TrimPrefix(raw, writtenPrefix))
}

func validate(rec crawler.ReviewRecord) bool {
	return rec.Title != "" && rec.Text != "" && rec.Rating > 0
}

// ExtractTotalCount returns the pagination-summary review total. It tries
// the results strip first, then a full-page scan, then the reviews tab
// counter.
func (p *Parser) ExtractTotalCount(page []byte) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return 0, false
	}

	if m := totalOfRe.FindStringSubmatch(doc.Find("div.Ci").First().Text()); m != nil {
		if n, err := parseCount(m[1]); err == nil {
			return n, true
		}
	}
	if m := showingOfRe.FindStringSubmatch(string(page)); m != nil {
		if n, err := parseCount(m[1]); err == nil {
			return n, true
		}
	}
	tab := doc.Find(`a[data-tab-name="Reviews"] span`).First().Text()
	if tab != "" {
		if n, err := parseCount(tab); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ExtractLanguageCount returns the review count shown next to lang in the
// language-selector control.
func (p *Parser) ExtractLanguageCount(page []byte, lang string) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return 0, false
	}
	name := languageName(lang)

	var count int
	found := false
	doc.Find(`button.Datwj[aria-haspopup="listbox"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := s.Text()
		if !strings.Contains(strings.ToLower(txt), strings.ToLower(name)) {
			return true
		}
		if m := langCountRe.FindStringSubmatch(txt); m != nil {
			if n, err := parseCount(m[1]); err == nil {
				count, found = n, true
				return false
			}
		}
		return true
	})
	return count, found
}

// IsTargetLanguageView reports whether the language selector shows lang as
// the active filter.
func (p *Parser) IsTargetLanguageView(page []byte, lang string) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false
	}
	name := strings.ToLower(languageName(lang))

	confirmed := false
	doc.Find(`button.Datwj[aria-haspopup="listbox"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), name) {
			confirmed = true
			return false
		}
		return true
	})
	return confirmed
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func parseCount(raw string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
}

// text returns the selection's text with whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " "))
}
