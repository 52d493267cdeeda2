// Package intent turns a raw question into a typed retrieval intent.
// Parsing is rule-based and deterministic: no model call, no network.
package intent

import (
	"strings"
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Keyword sets driving query classification. First match wins in the order
// checked by classify.
var (
	comparisonWords = []string{"compare", "comparison", "versus", " vs ", "vs.", "better", "worse", "difference"}
	trendWords      = []string{"trend", "over time", "growth", "decline", "increase", "decrease", "week over week", "month over month"}
	rankingWords    = []string{"top", "best", "worst", "highest", "lowest", "rank", "leading"}
	financialWords  = []string{"spend", "cost", "budget", "revenue", "roas", "roi", "cpc", "cpa", "profit"}
	performanceWord = []string{"performance", "performing", "ctr", "click", "impression", "conversion", "engagement"}
	recommendWords  = []string{"recommend", "should i", "should we", "suggest", "advice", "optimize"}

	followUpWords = []string{"it", "that", "those", "them", "this", "these", "same"}
	followUpLead  = []string{"what about", "how about", "and the", "and for", "what if"}
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "of": true, "for": true, "in": true, "on": true, "to": true,
	"my": true, "our": true, "me": true, "show": true, "tell": true, "what": true,
	"which": true, "how": true, "did": true, "do": true, "does": true, "and": true,
	"with": true, "about": true, "last": true, "this": true, "that": true,
}

// Default lookback windows applied when the request carries no dates.
const (
	defaultLookback = 30 * 24 * time.Hour
	trendLookback   = 90 * 24 * time.Hour
)

// Parser classifies questions. The clock is injectable for tests.
type Parser struct {
	now func() time.Time
}

// NewParser creates an intent parser using wall-clock time.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// NewParserAt creates a parser with a fixed clock.
func NewParserAt(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse builds the intent for a question. requested may be zero, in which
// case a default lookback window based on the query type is applied. seeds
// are entities referenced in recent turns; they are attached only when the
// question reads like a follow-up.
func (p *Parser) Parse(question string, requested domain.DateRange, seeds []domain.EntityRef) domain.ParsedIntent {
	lower := strings.ToLower(question)

	parsed := domain.ParsedIntent{
		QueryType:  classify(lower),
		EntityType: detectEntityType(lower),
		Channel:    detectChannel(lower),
		Terms:      extractTerms(lower),
		FollowUp:   isFollowUp(lower),
	}

	if parsed.FollowUp {
		parsed.SeedEntities = seeds
	}

	parsed.Dates = requested
	if parsed.Dates.IsZero() {
		parsed.Dates = p.defaultRange(parsed.QueryType)
	}

	return parsed
}

func (p *Parser) defaultRange(qt domain.QueryType) domain.DateRange {
	end := p.now().UTC().Truncate(24 * time.Hour)
	lookback := defaultLookback
	if qt == domain.QueryTrend {
		lookback = trendLookback
	}
	return domain.DateRange{Start: end.Add(-lookback), End: end}
}

func classify(lower string) domain.QueryType {
	switch {
	case containsAny(lower, recommendWords):
		return domain.QueryRecommendation
	case containsAny(lower, comparisonWords):
		return domain.QueryComparison
	case containsAny(lower, trendWords):
		return domain.QueryTrend
	case containsAny(lower, rankingWords):
		return domain.QueryRanking
	case containsAny(lower, financialWords):
		return domain.QueryFinancial
	case containsAny(lower, performanceWord):
		return domain.QueryPerformance
	default:
		return domain.QueryGeneral
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func detectEntityType(lower string) string {
	switch {
	case strings.Contains(lower, "ad set") || strings.Contains(lower, "adset"):
		return domain.EntityAdSet
	case strings.Contains(lower, "campaign"):
		return domain.EntityCampaign
	case strings.Contains(lower, " ad ") || strings.HasSuffix(lower, " ad") ||
		strings.Contains(lower, " ads ") || strings.HasSuffix(lower, " ads"):
		return domain.EntityAd
	default:
		return ""
	}
}

func detectChannel(lower string) string {
	switch {
	case strings.Contains(lower, "google"):
		return "google_ads"
	case strings.Contains(lower, "meta") || strings.Contains(lower, "facebook") || strings.Contains(lower, "instagram"):
		return "meta"
	default:
		return ""
	}
}

func isFollowUp(lower string) bool {
	for _, lead := range followUpLead {
		if strings.Contains(lower, lead) {
			return true
		}
	}
	words := strings.FieldsFunc(lower, isSeparator)
	for _, w := range words {
		for _, f := range followUpWords {
			if w == f {
				return true
			}
		}
	}
	return false
}

// extractTerms keeps the significant words used for name matching during
// graph traversal.
func extractTerms(lower string) []string {
	words := strings.FieldsFunc(lower, isSeparator)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

func isSeparator(r rune) bool {
	return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
}
