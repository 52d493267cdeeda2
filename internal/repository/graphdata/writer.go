package graphdata

import (
	"fmt"
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
)

// UpsertEntity writes an entity node. The name lands in the node properties
// under PropName; extra props are copied as-is.
func (r *Repository) UpsertEntity(tenantID string, ref domain.EntityRef, name string, props map[string]any) error {
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}
	merged := make(map[string]any, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged[PropName] = name

	node := &graph.Node{
		ID:         nodeID(ref),
		Label:      ref.Type,
		TenantID:   tenantID,
		Properties: merged,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.engine.PutNode(node); err != nil {
		return fmt.Errorf("upsert entity %s: %w", ref.Key(), err)
	}
	return nil
}

// Link connects two entities with a typed edge. Edge ids are deterministic,
// so re-linking the same pair is idempotent.
func (r *Repository) Link(from, to domain.EntityRef, edgeType graph.EdgeType) error {
	edge := &graph.Edge{
		ID:   graph.EdgeID(string(edgeType) + ":" + from.Key() + ">" + to.Key()),
		From: nodeID(from),
		To:   nodeID(to),
		Type: edgeType,
	}
	if err := r.engine.PutEdge(edge); err != nil {
		return fmt.Errorf("link %s -%s-> %s: %w", from.Key(), edgeType, to.Key(), err)
	}
	return nil
}

// AddMetricSample writes one day of metrics for an entity and attaches it
// with a HAS_METRIC edge. One node per entity per day.
func (r *Repository) AddMetricSample(tenantID string, ref domain.EntityRef, sample domain.MetricSample) error {
	day := sample.Date.Format(domain.DateDay)
	metricRef := domain.EntityRef{
		ID:   ref.Key() + ":" + day,
		Type: domain.EntityMetric,
	}

	node := &graph.Node{
		ID:       nodeID(metricRef),
		Label:    domain.EntityMetric,
		TenantID: tenantID,
		Properties: map[string]any{
			PropDate:        day,
			PropImpressions: float64(sample.Impressions),
			PropClicks:      float64(sample.Clicks),
			PropConversions: float64(sample.Conversions),
			PropSpend:       sample.Spend,
			PropRevenue:     sample.Revenue,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := r.engine.PutNode(node); err != nil {
		return fmt.Errorf("upsert metric %s: %w", metricRef.Key(), err)
	}
	return r.Link(ref, metricRef, graph.EdgeHasMetric)
}
