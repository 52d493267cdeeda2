package domain

// QueryType classifies what the user is asking for.
type QueryType string

// Recognized query types.
const (
	QueryGeneral        QueryType = "general"
	QueryComparison     QueryType = "comparison"
	QueryTrend          QueryType = "trend"
	QueryRanking        QueryType = "ranking"
	QueryFinancial      QueryType = "financial"
	QueryPerformance    QueryType = "performance"
	QueryRecommendation QueryType = "recommendation"
)

// ParsedIntent is the typed output of the intent parser. Retrieval logic
// consumes only this structure, never the raw question, so it stays testable
// with synthetic intents.
type ParsedIntent struct {
	QueryType  QueryType
	EntityType string // campaign, adset, ad, or "" for all
	Channel    string // google_ads, meta, or "" for all
	Terms      []string
	Dates      DateRange
	FollowUp   bool
	// SeedEntities come from recent conversation turns and let follow-up
	// traversals start from previously referenced entities.
	SeedEntities []EntityRef
}
