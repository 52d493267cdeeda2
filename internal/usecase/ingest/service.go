// Package ingest is the write path external collaborators use to load
// entities, metrics, and searchable snippets for a tenant. The query side
// never writes; this is the only mutation surface.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
	"github.com/acharyye/graphRAG/internal/repository/graphdata"
	"github.com/acharyye/graphRAG/internal/repository/vectorindex"
)

// GraphWriter is the consumer interface over the graph repository (ISP).
type GraphWriter interface {
	UpsertEntity(tenantID string, ref domain.EntityRef, name string, props map[string]any) error
	Link(from, to domain.EntityRef, edgeType graph.EdgeType) error
	AddMetricSample(tenantID string, ref domain.EntityRef, sample domain.MetricSample) error
	ClientExists(tenantID string) (bool, error)
}

// DocumentStore is the consumer interface over the vector index (ISP).
type DocumentStore interface {
	Upsert(ctx context.Context, doc vectorindex.Document) error
	Delete(ctx context.Context, tenantID string, entity domain.EntityRef) error
}

// Entity is one entity to ingest.
type Entity struct {
	Ref         domain.EntityRef
	Name        string
	Parent      domain.EntityRef // zero for clients
	Channel     string           // campaigns only
	Description string           // searchable snippet; defaults to name and type
	Props       map[string]any
}

// Service loads tenant data into the graph and the vector index.
type Service struct {
	writer   GraphWriter
	docs     DocumentStore
	embedder domain.Embedder
	logger   *zap.Logger
}

// New creates the ingest service.
func New(writer GraphWriter, docs DocumentStore, embedder domain.Embedder, logger *zap.Logger) *Service {
	return &Service{writer: writer, docs: docs, embedder: embedder, logger: logger}
}

// UpsertEntity writes one entity node, its structural edges, and its vector
// document. Non-client entities require an existing client node so a typo in
// tenant_id cannot silently create a new tenant.
func (s *Service) UpsertEntity(ctx context.Context, tenantID string, e Entity) error {
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}
	if e.Ref.ID == "" || e.Ref.Type == "" {
		return fmt.Errorf("%w: entity id and type are required", domain.ErrNotFound)
	}

	if e.Ref.Type != domain.EntityClient {
		exists, err := s.writer.ClientExists(tenantID)
		if err != nil {
			return fmt.Errorf("check client: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: no client node for %q", domain.ErrInvalidTenant, tenantID)
		}
	}

	props := e.Props
	if e.Channel != "" {
		props = cloneProps(props)
		props[graphdata.PropChannel] = e.Channel
	}
	if err := s.writer.UpsertEntity(tenantID, e.Ref, e.Name, props); err != nil {
		return err
	}

	if !e.Parent.IsZero() {
		if err := s.writer.Link(e.Parent, e.Ref, edgeTypeFor(e.Parent, e.Ref)); err != nil {
			return err
		}
	}
	if e.Channel != "" && e.Ref.Type == domain.EntityCampaign {
		channelRef := graphdata.ChannelRef(tenantID, e.Channel)
		if err := s.writer.UpsertEntity(tenantID, channelRef, e.Channel, nil); err != nil {
			return err
		}
		if err := s.writer.Link(e.Ref, channelRef, graph.EdgeAdvertisesOn); err != nil {
			return err
		}
	}

	return s.indexEntity(ctx, tenantID, e)
}

// AddMetrics appends daily samples to an entity.
func (s *Service) AddMetrics(ctx context.Context, tenantID string, ref domain.EntityRef, samples []domain.MetricSample) error {
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writer.AddMetricSample(tenantID, ref, sample); err != nil {
			return err
		}
	}
	return nil
}

// indexEntity embeds the entity description and upserts the vector document.
// Clients and channels are structural, not evidence, and are not indexed.
func (s *Service) indexEntity(ctx context.Context, tenantID string, e Entity) error {
	if e.Ref.Type == domain.EntityClient || e.Ref.Type == domain.EntityChannel {
		return nil
	}

	snippet := e.Description
	if snippet == "" {
		snippet = fmt.Sprintf("%s (%s)", e.Name, e.Ref.Type)
	}

	emb, err := s.embedder.Embed(ctx, snippet)
	if err != nil {
		return fmt.Errorf("embed snippet: %w", err)
	}

	return s.docs.Upsert(ctx, vectorindex.Document{
		TenantID:  tenantID,
		Entity:    e.Ref,
		Name:      e.Name,
		Snippet:   snippet,
		Embedding: emb.Embedding,
	})
}

// DeleteEntity removes an entity's vector document. The graph node stays;
// structural history keeps drill-downs working for past periods.
func (s *Service) DeleteEntity(ctx context.Context, tenantID string, ref domain.EntityRef) error {
	return s.docs.Delete(ctx, tenantID, ref)
}

func edgeTypeFor(parent, child domain.EntityRef) graph.EdgeType {
	if parent.Type == domain.EntityClient && child.Type == domain.EntityCampaign {
		return graph.EdgeRuns
	}
	return graph.EdgeContains
}

func cloneProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}
