// Package vectorindex stores entity snippet documents in a RediSearch
// vector index and runs tenant-filtered KNN queries over them.
package vectorindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/db"
	"github.com/acharyye/graphRAG/internal/domain"
)

const (
	// IndexName is the RediSearch index holding all tenant documents.
	// Isolation is enforced per query with a mandatory tenant TAG filter,
	// not with per-tenant indexes.
	IndexName = "graphrag-docs"

	docKeyPrefix = domain.KeyPrefix + "doc:"
)

// Hash field names of an indexed document.
const (
	fieldTenant     = "tenant"
	fieldEntityType = "entity_type"
	fieldEntityID   = "entity_id"
	fieldName       = "name"
	fieldSnippet    = "snippet"
	fieldDateStart  = "date_start"
	fieldDateEnd    = "date_end"
	fieldVector     = "vector"

	// fieldScore is the KNN distance RediSearch computes per hit. With a
	// RETURN clause only named fields come back, so it must be requested
	// explicitly or every hit parses with similarity 0.
	fieldScore = "__vector_score"
)

// Document is one embeddable snippet tied to a graph entity.
type Document struct {
	TenantID  string
	Entity    domain.EntityRef
	Name      string
	Snippet   string
	Dates     domain.DateRange
	Embedding []float32
}

// store is the consumer interface over the database layer (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repository persists and searches snippet documents.
type Repository struct {
	store      store
	dimensions int
	logger     *zap.Logger
}

// New creates a vector index repository. dimensions is the embedding width
// used when the index is first created.
func New(s store, dimensions int, logger *zap.Logger) *Repository {
	return &Repository{store: s, dimensions: dimensions, logger: logger}
}

// EnsureIndex creates the document index if it does not exist yet.
func (r *Repository) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{docKeyPrefix},
		Fields: []db.IndexField{
			{Name: fieldTenant, Type: db.IndexFieldTag},
			{Name: fieldEntityType, Type: db.IndexFieldTag},
			{Name: fieldDateStart, Type: db.IndexFieldNumeric},
			{Name: fieldDateEnd, Type: db.IndexFieldNumeric},
			{
				Name:           fieldVector,
				Type:           db.IndexFieldVector,
				VectorAlgo:     db.VectorHNSW,
				VectorDim:      r.dimensions,
				VectorDistance: db.DistanceCosine,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, &def); err != nil {
		return fmt.Errorf("create index %q: %w", IndexName, err)
	}

	r.logger.Info("Created vector index", zap.String("index", IndexName), zap.Int("dimensions", r.dimensions))
	return nil
}

// Upsert writes a document hash. Keyed by tenant and entity so re-ingesting
// the same entity replaces its previous snippet.
func (r *Repository) Upsert(ctx context.Context, doc Document) error {
	if doc.TenantID == "" {
		return domain.ErrInvalidTenant
	}
	if len(doc.Embedding) != r.dimensions {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(doc.Embedding), r.dimensions)
	}

	fields := map[string]string{
		fieldTenant:     doc.TenantID,
		fieldEntityType: doc.Entity.Type,
		fieldEntityID:   doc.Entity.ID,
		fieldName:       doc.Name,
		fieldSnippet:    doc.Snippet,
		fieldVector:     string(vectorToBytes(doc.Embedding)),
	}
	if !doc.Dates.IsZero() {
		fields[fieldDateStart] = strconv.FormatInt(doc.Dates.Start.Unix(), 10)
		fields[fieldDateEnd] = strconv.FormatInt(doc.Dates.End.Unix(), 10)
	}

	if err := r.store.HSet(ctx, r.docKey(doc.TenantID, doc.Entity), fields); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete removes a document. Missing keys are not an error.
func (r *Repository) Delete(ctx context.Context, tenantID string, entity domain.EntityRef) error {
	if err := r.store.Del(ctx, r.docKey(tenantID, entity)); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search runs a tenant-filtered KNN query and parses hits into evidence.
// Total reports index-wide matches for the filter so callers can decide
// whether a larger K would surface more tenant documents.
func (r *Repository) Search(
	ctx context.Context,
	tenantID string,
	vector []float32,
	k int,
	entityTypes []string,
) ([]domain.EvidenceItem, int, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:   IndexName,
		TenantTag:   tenantID,
		EntityTypes: entityTypes,
		Vector:      vector,
		K:           k,
		ReturnFields: []string{
			fieldEntityType, fieldEntityID, fieldName,
			fieldSnippet, fieldDateStart, fieldDateEnd, fieldScore,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("knn search: %w", err)
	}

	items := make([]domain.EvidenceItem, 0, len(res.Entries))
	now := time.Now().UTC()
	for _, entry := range res.Entries {
		item, ok := parseEntry(entry, now)
		if !ok {
			r.logger.Warn("Skipping malformed index entry", zap.String("key", entry.Key))
			continue
		}
		items = append(items, item)
	}

	return items, res.Total, nil
}

func (r *Repository) docKey(tenantID string, entity domain.EntityRef) string {
	return docKeyPrefix + tenantID + ":" + entity.Key()
}

func parseEntry(entry db.SearchEntry, retrievedAt time.Time) (domain.EvidenceItem, bool) {
	entityID := entry.Fields[fieldEntityID]
	entityType := entry.Fields[fieldEntityType]
	if entityID == "" || entityType == "" {
		return domain.EvidenceItem{}, false
	}

	item := domain.EvidenceItem{
		Source:      domain.SourceVector,
		Entity:      domain.EntityRef{ID: entityID, Type: entityType},
		Name:        entry.Fields[fieldName],
		Snippet:     entry.Fields[fieldSnippet],
		Score:       entry.Score,
		RetrievedAt: retrievedAt,
	}

	if start, ok := parseUnix(entry.Fields[fieldDateStart]); ok {
		if end, ok := parseUnix(entry.Fields[fieldDateEnd]); ok {
			item.Dates = domain.DateRange{Start: start, End: end}
		}
	}

	return item, true
}

func parseUnix(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
