package query

import (
	"context"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
	"github.com/acharyye/graphRAG/internal/repository/audit"
	"github.com/acharyye/graphRAG/internal/usecase/confidence"
	"github.com/acharyye/graphRAG/internal/usecase/synthesis"
)

// ScopeGuard validates tenants and produces tenant contexts.
type ScopeGuard interface {
	Scope(tenantID string, dates domain.DateRange) (domain.TenantContext, error)
}

// IntentParser classifies questions.
type IntentParser interface {
	Parse(question string, requested domain.DateRange, seeds []domain.EntityRef) domain.ParsedIntent
}

// GraphRetriever walks the tenant subgraph for evidence.
type GraphRetriever interface {
	Retrieve(ctx context.Context, tc domain.TenantContext, intent domain.ParsedIntent) ([]domain.EvidenceItem, error)
}

// VectorRetriever searches the vector index for evidence.
type VectorRetriever interface {
	Retrieve(ctx context.Context, tc domain.TenantContext, question string, intent domain.ParsedIntent) ([]domain.EvidenceItem, error)
}

// EvidenceFuser merges the two evidence lists.
type EvidenceFuser interface {
	Fuse(graphItems, vectorItems []domain.EvidenceItem) domain.EvidenceSet
}

// Synthesizer generates and verifies the answer, and produces proactive
// suggestions for intents that warrant them.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, evidence domain.EvidenceSet, history []domain.ConversationTurn) (synthesis.Result, error)
	Recommend(ctx context.Context, evidence domain.EvidenceSet) ([]string, error)
}

// Scorer labels the result.
type Scorer interface {
	Score(in confidence.Input) (domain.Confidence, string)
}

// Memory is the conversation history the orchestrator reads and appends.
type Memory interface {
	Recent(ctx context.Context, tenantID, sessionID string) ([]domain.ConversationTurn, []domain.EntityRef, error)
	Append(ctx context.Context, tenantID, sessionID, question, answer string, entities []domain.EntityRef) error
	Clear(ctx context.Context, tenantID, sessionID string) error
}

// Auditor records completed queries. Best-effort from the orchestrator's
// point of view.
type Auditor interface {
	Write(ctx context.Context, rec audit.Record) error
}

// DrillReader is the graph access drill-down needs (ISP).
type DrillReader interface {
	Entity(tenantID string, ref domain.EntityRef) (*graph.Node, error)
	Children(tenantID string, ref domain.EntityRef) ([]*graph.Node, error)
	Metrics(tenantID string, ref domain.EntityRef, dates domain.DateRange) ([]domain.MetricSample, error)
}
