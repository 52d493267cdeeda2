package retrieval

import (
	"context"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
)

// GraphReader is the consumer interface over the graph repository (ISP).
type GraphReader interface {
	Entity(tenantID string, ref domain.EntityRef) (*graph.Node, error)
	Children(tenantID string, ref domain.EntityRef) ([]*graph.Node, error)
	Channels(tenantID string, ref domain.EntityRef) ([]*graph.Node, error)
	Metrics(tenantID string, ref domain.EntityRef, dates domain.DateRange) ([]domain.MetricSample, error)
}

// VectorSearcher is the consumer interface over the vector index (ISP).
type VectorSearcher interface {
	Search(ctx context.Context, tenantID string, vector []float32, k int, entityTypes []string) ([]domain.EvidenceItem, int, error)
}
