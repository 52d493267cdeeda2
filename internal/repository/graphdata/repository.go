// Package graphdata is the tenant-scoped access layer over the embedded
// marketing graph. Every read validates node ownership before returning
// data, so callers cannot traverse into another tenant's subgraph.
package graphdata

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
)

// Property names shared with the ingest side.
const (
	PropName        = "name"
	PropChannel     = "channel"
	PropStatus      = "status"
	PropDate        = "date"
	PropImpressions = "impressions"
	PropClicks      = "clicks"
	PropConversions = "conversions"
	PropSpend       = "spend"
	PropRevenue     = "revenue"
)

// Repository reads and writes the marketing graph.
type Repository struct {
	engine *graph.Engine
	logger *zap.Logger
}

// New creates a graph data repository.
func New(engine *graph.Engine, logger *zap.Logger) *Repository {
	return &Repository{engine: engine, logger: logger}
}

// nodeID maps an entity reference onto its graph node id. Node ids embed the
// entity type so references from different namespaces never collide.
func nodeID(ref domain.EntityRef) graph.NodeID {
	return graph.NodeID(ref.Key())
}

// ClientRef returns the entity reference of a tenant's client node.
func ClientRef(tenantID string) domain.EntityRef {
	return domain.EntityRef{ID: tenantID, Type: domain.EntityClient}
}

// ChannelRef returns the tenant-scoped reference of a channel node. Channel
// names repeat across tenants, so a shared node would let the last writer
// claim ownership and hide the channel from everyone else.
func ChannelRef(tenantID, channel string) domain.EntityRef {
	return domain.EntityRef{ID: tenantID + ":" + channel, Type: domain.EntityChannel}
}

// ClientExists reports whether the tenant has a client node. This is the
// registry check the scope guard runs before any retrieval starts.
func (r *Repository) ClientExists(tenantID string) (bool, error) {
	node, err := r.engine.GetNode(nodeID(ClientRef(tenantID)))
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup client node: %w", err)
	}
	return node.TenantID == tenantID, nil
}

// Entity fetches a node and enforces tenant ownership. A node owned by a
// different tenant is reported as a mismatch, never returned.
func (r *Repository) Entity(tenantID string, ref domain.EntityRef) (*graph.Node, error) {
	node, err := r.engine.GetNode(nodeID(ref))
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, fmt.Errorf("entity %s: %w", ref.Key(), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get entity %s: %w", ref.Key(), err)
	}
	if node.TenantID != tenantID {
		return nil, fmt.Errorf("entity %s: %w", ref.Key(), domain.ErrTenantMismatch)
	}
	return node, nil
}

// Children returns the structural children of an entity: campaigns under a
// client, ad sets under a campaign, ads under an ad set. Nodes owned by a
// different tenant are dropped.
func (r *Repository) Children(tenantID string, ref domain.EntityRef) ([]*graph.Node, error) {
	edges, err := r.engine.Outgoing(nodeID(ref), graph.EdgeRuns, graph.EdgeContains)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", ref.Key(), err)
	}
	return r.resolveTargets(tenantID, edges)
}

// Channels returns the channel nodes a campaign advertises on.
func (r *Repository) Channels(tenantID string, ref domain.EntityRef) ([]*graph.Node, error) {
	edges, err := r.engine.Outgoing(nodeID(ref), graph.EdgeAdvertisesOn)
	if err != nil {
		return nil, fmt.Errorf("channels of %s: %w", ref.Key(), err)
	}
	return r.resolveTargets(tenantID, edges)
}

// Metrics returns an entity's daily metric samples inside the given range,
// sorted by date. A zero range returns everything.
func (r *Repository) Metrics(tenantID string, ref domain.EntityRef, dates domain.DateRange) ([]domain.MetricSample, error) {
	edges, err := r.engine.Outgoing(nodeID(ref), graph.EdgeHasMetric)
	if err != nil {
		return nil, fmt.Errorf("metrics of %s: %w", ref.Key(), err)
	}

	samples := make([]domain.MetricSample, 0, len(edges))
	for _, edge := range edges {
		node, err := r.engine.GetNode(edge.To)
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("metric node %s: %w", edge.To, err)
		}
		if node.TenantID != tenantID {
			continue
		}
		sample, ok := parseSample(node)
		if !ok {
			r.logger.Warn("Skipping metric node without a date", zap.String("node", string(node.ID)))
			continue
		}
		if !dates.IsZero() && !dates.Contains(sample.Date) {
			continue
		}
		samples = append(samples, sample)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })
	return samples, nil
}

// ParentOf returns the structural parent of an entity, or nil for a client.
func (r *Repository) ParentOf(tenantID string, ref domain.EntityRef) (*graph.Node, error) {
	edges, err := r.engine.Incoming(nodeID(ref), graph.EdgeRuns, graph.EdgeContains)
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %w", ref.Key(), err)
	}
	if len(edges) == 0 {
		return nil, nil
	}
	node, err := r.engine.GetNode(edges[0].From)
	if err != nil {
		return nil, fmt.Errorf("parent node of %s: %w", ref.Key(), err)
	}
	if node.TenantID != tenantID {
		return nil, fmt.Errorf("parent of %s: %w", ref.Key(), domain.ErrTenantMismatch)
	}
	return node, nil
}

// Ref converts a node back into an entity reference.
func Ref(node *graph.Node) domain.EntityRef {
	key := string(node.ID)
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return domain.EntityRef{Type: key[:i], ID: key[i+1:]}
		}
	}
	return domain.EntityRef{Type: node.Label, ID: key}
}

func (r *Repository) resolveTargets(tenantID string, edges []*graph.Edge) ([]*graph.Node, error) {
	nodes := make([]*graph.Node, 0, len(edges))
	for _, edge := range edges {
		node, err := r.engine.GetNode(edge.To)
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("edge target %s: %w", edge.To, err)
		}
		if node.TenantID != tenantID {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseSample(node *graph.Node) (domain.MetricSample, bool) {
	date, err := time.Parse(domain.DateDay, node.StringProp(PropDate))
	if err != nil {
		return domain.MetricSample{}, false
	}
	return domain.MetricSample{
		Date:        date,
		Impressions: int64(node.FloatProp(PropImpressions)),
		Clicks:      int64(node.FloatProp(PropClicks)),
		Conversions: int64(node.FloatProp(PropConversions)),
		Spend:       node.FloatProp(PropSpend),
		Revenue:     node.FloatProp(PropRevenue),
	}, true
}
