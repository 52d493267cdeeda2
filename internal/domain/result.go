package domain

import "time"

// Confidence is the calibrated confidence label of a query result.
type Confidence string

// Confidence labels, ordered. REFUSED is a successful outcome: the engine
// declined to answer because evidence was insufficient.
const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceRefused Confidence = "REFUSED"
)

// ClaimSource attributes one answer segment to the evidence backing it.
type ClaimSource struct {
	Claim   string      `json:"claim"`
	Sources []EntityRef `json:"sources"`
}

// QueryResult is the final, immutable output of one query.
type QueryResult struct {
	QueryID         string
	Answer          string
	Confidence      Confidence
	Evidence        EvidenceSet
	Claims          []ClaimSource
	Recommendations []string // proactive suggestions for performance, financial, and ranking questions
	RefusalReason   string   // set only when Confidence is REFUSED
	Timestamp       time.Time
}

// DrillDownRow is one child entity with aggregated metrics.
type DrillDownRow struct {
	Entity      EntityRef `json:"entity"`
	Name        string    `json:"name"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Spend       float64   `json:"spend"`
	Revenue     float64   `json:"revenue"`
}

// DrillDown is the analyst-level breakdown of a single entity. It bypasses
// confidence gating: analysts may inspect raw evidence even when the overall
// answer was LOW or REFUSED.
type DrillDown struct {
	Entity    EntityRef      `json:"entity"`
	Name      string         `json:"name"`
	Snippet   string         `json:"snippet"`
	Children  []DrillDownRow `json:"children"`
	Totals    DrillDownRow   `json:"totals"`
	Breakdown []MetricSample `json:"breakdown"`
}

// MetricSample is one day of metrics for an entity.
type MetricSample struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Spend       float64   `json:"spend"`
	Revenue     float64   `json:"revenue"`
}
