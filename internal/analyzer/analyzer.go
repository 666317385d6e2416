// Package analyzer classifies review text into a five-class sentiment
// scale using a small weighted lexicon. Reviews carry their own star
// rating, so the lexicon only needs to be good enough to flag mismatches
// between tone and rating; no model inference happens here.
package analyzer

import (
	"strings"
	"unicode"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

// Labels, ordinal 0 through 4.
const (
	LabelVeryNegative = "VERY_NEGATIVE"
	LabelNegative     = "NEGATIVE"
	LabelNeutral      = "NEUTRAL"
	LabelPositive     = "POSITIVE"
	LabelVeryPositive = "VERY_POSITIVE"
)

// maxRunes bounds the text considered per review.
const maxRunes = 512

// positive and negative carry token weights; 2 marks strong markers.
var positive = map[string]int{
	"amazing": 2, "awesome": 2, "breathtaking": 2, "excellent": 2,
	"fantastic": 2, "incredible": 2, "outstanding": 2, "perfect": 2,
	"stunning": 2, "unforgettable": 2, "wonderful": 2, "spectacular": 2,
	"beautiful": 1, "best": 1, "enjoyable": 1, "friendly": 1, "fun": 1,
	"good": 1, "great": 1, "helpful": 1, "impressive": 1, "lovely": 1,
	"nice": 1, "pleasant": 1, "recommend": 1, "recommended": 1,
	"relaxing": 1, "worth": 1, "delicious": 1, "clean": 1,
}

var negative = map[string]int{
	"awful": 2, "disgusting": 2, "horrible": 2, "scam": 2, "terrible": 2,
	"worst": 2, "dangerous": 2, "filthy": 2, "ripoff": 2, "unacceptable": 2,
	"avoid": 1, "bad": 1, "boring": 1, "crowded": 1, "dirty": 1,
	"disappointed": 1, "disappointing": 1, "expensive": 1, "mediocre": 1,
	"overpriced": 1, "overrated": 1, "poor": 1, "rude": 1, "slow": 1,
	"uncomfortable": 1, "unfriendly": 1, "waste": 1, "broken": 1,
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "nothing": {}, "hardly": {},
	"isnt": {}, "wasnt": {}, "dont": {}, "didnt": {}, "wont": {},
}

// Analyzer scores review text. Stateless and safe for concurrent use.
// Satisfies crawler.Analyzer.
type Analyzer struct{}

// New builds an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze scores text. Empty input is neutral.
func (a *Analyzer) Analyze(text string) crawler.SentimentResult {
	tokens := tokenize(truncate(text, maxRunes))
	if len(tokens) == 0 {
		return crawler.SentimentResult{Label: LabelNeutral, Score: 2}
	}

	score := 0
	negated := false
	for _, tok := range tokens {
		if _, ok := negators[tok]; ok {
			negated = true
			continue
		}
		w := 0
		if pw, ok := positive[tok]; ok {
			w = pw
		} else if nw, ok := negative[tok]; ok {
			w = -nw
		}
		if w != 0 {
			if negated {
				w = -w
			}
			score += w
		}
		// Negation only flips the next sentiment-bearing token.
		if w != 0 {
			negated = false
		}
	}

	return classify(score)
}

func classify(score int) crawler.SentimentResult {
	switch {
	case score <= -4:
		return crawler.SentimentResult{Label: LabelVeryNegative, Score: 0}
	case score < 0:
		return crawler.SentimentResult{Label: LabelNegative, Score: 1}
	case score == 0:
		return crawler.SentimentResult{Label: LabelNeutral, Score: 2}
	case score < 4:
		return crawler.SentimentResult{Label: LabelPositive, Score: 3}
	default:
		return crawler.SentimentResult{Label: LabelVeryPositive, Score: 4}
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// "don't" tokenizes as "dont" so the negator table matches.
		default:
			flush()
		}
	}
	flush()
	return tokens
}
