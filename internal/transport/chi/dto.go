package chi

import (
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type queryRequest struct {
	TenantID  string `json:"tenant_id"`
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Role      string `json:"role,omitempty"`
}

type drillDownRequest struct {
	TenantID  string           `json:"tenant_id"`
	Role      string           `json:"role"`
	Entity    domain.EntityRef `json:"entity"`
	StartDate string           `json:"start_date,omitempty"`
	EndDate   string           `json:"end_date,omitempty"`
}

type evidenceItemResponse struct {
	Entity    domain.EntityRef `json:"entity"`
	Source    string           `json:"source"`
	Name      string           `json:"name,omitempty"`
	Snippet   string           `json:"snippet"`
	Score     float64          `json:"score"`
	Agreement bool             `json:"agreement"`
	Dates     string           `json:"dates,omitempty"`
}

type queryResponse struct {
	QueryID         string                 `json:"query_id"`
	Answer          string                 `json:"answer,omitempty"`
	Confidence      domain.Confidence      `json:"confidence"`
	RefusalReason   string                 `json:"refusal_reason,omitempty"`
	Evidence        []evidenceItemResponse `json:"evidence"`
	Claims          []domain.ClaimSource   `json:"claims,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// resultToResponse renders a query result. A refused query still carries its
// evidence so the caller can see what was considered and rejected.
func resultToResponse(result *domain.QueryResult) queryResponse {
	evidence := make([]evidenceItemResponse, len(result.Evidence))
	for i, item := range result.Evidence {
		evidence[i] = evidenceItemResponse{
			Entity:    item.Entity,
			Source:    string(item.Source),
			Name:      item.Name,
			Snippet:   item.Snippet,
			Score:     item.Score,
			Agreement: item.Agreement,
			Dates:     item.Dates.String(),
		}
	}

	return queryResponse{
		QueryID:         result.QueryID,
		Answer:          result.Answer,
		Confidence:      result.Confidence,
		RefusalReason:   result.RefusalReason,
		Evidence:        evidence,
		Claims:          result.Claims,
		Recommendations: result.Recommendations,
		Timestamp:       result.Timestamp,
	}
}
