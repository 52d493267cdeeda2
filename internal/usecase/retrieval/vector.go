package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

// VectorParams bound a single similarity search.
type VectorParams struct {
	TopK             int
	BackfillAttempts int // extra rounds with doubled K when tenant filtering starves the result
}

// Vector retrieves evidence by embedding the question and running a
// tenant-filtered KNN query. The tenant TAG filter lives inside the query
// itself, so a result can never contain a foreign document.
type Vector struct {
	embedder domain.Embedder
	searcher VectorSearcher
	params   VectorParams
	logger   *zap.Logger
}

// NewVector creates the vector retriever.
func NewVector(embedder domain.Embedder, searcher VectorSearcher, params VectorParams, logger *zap.Logger) *Vector {
	return &Vector{embedder: embedder, searcher: searcher, params: params, logger: logger}
}

// Retrieve embeds the question and searches the index. When the filtered
// result is short of TopK it retries with a doubled K, because the index
// prunes candidates before the tenant filter applies.
func (v *Vector) Retrieve(ctx context.Context, tc domain.TenantContext, question string, intent domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	if !tc.Valid() {
		return nil, domain.ErrInvalidTenant
	}

	emb, err := v.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var entityTypes []string
	if intent.EntityType != "" {
		entityTypes = []string{intent.EntityType}
	}

	k := v.params.TopK
	seen := make(map[string]bool)
	var items []domain.EvidenceItem

	for attempt := 0; ; attempt++ {
		hits, total, err := v.searcher.Search(ctx, tc.TenantID(), emb.Embedding, k, entityTypes)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}

		for _, hit := range hits {
			if seen[hit.Entity.Key()] {
				continue
			}
			seen[hit.Entity.Key()] = true
			items = append(items, hit)
		}

		if len(items) >= v.params.TopK || attempt >= v.params.BackfillAttempts || len(items) >= total {
			break
		}
		k *= 2
		v.logger.Debug("Backfilling starved vector search",
			zap.String("tenant_id", tc.TenantID()),
			zap.Int("have", len(items)),
			zap.Int("next_k", k))
	}

	if len(items) > v.params.TopK {
		items = items[:v.params.TopK]
	}
	return items, nil
}
