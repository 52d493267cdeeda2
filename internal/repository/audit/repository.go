// Package audit writes query audit records with a retention TTL. Auditing
// is best-effort: a failed write is logged, never surfaced to the caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

var auditKeyPrefix = domain.KeyPrefix + "audit:"

// Truncation limits keep audit values bounded regardless of answer length.
const (
	maxQuestionLen = 1000
	maxAnswerLen   = 2000
)

// Record is one audited query.
type Record struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Confidence domain.Confidence `json:"confidence"`
	LatencyMS  int64             `json:"latency_ms"`
	Timestamp  time.Time         `json:"timestamp"`
}

// store is the consumer interface for audit persistence (ISP).
type store interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repository writes audit records.
type Repository struct {
	store     store
	retention time.Duration
	logger    *zap.Logger
}

// New creates an audit repository.
func New(s store, retention time.Duration, logger *zap.Logger) *Repository {
	return &Repository{store: s, retention: retention, logger: logger}
}

// Write stores one audit record. The error return exists for tests; the
// orchestrator ignores it.
func (r *Repository) Write(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Question = truncate(rec.Question, maxQuestionLen)
	rec.Answer = truncate(rec.Answer, maxAnswerLen)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	key := auditKeyPrefix + rec.TenantID + ":" + rec.ID
	if err := r.store.SetWithTTL(ctx, key, data, r.retention); err != nil {
		r.logger.Warn("Failed to write audit record",
			zap.String("tenant_id", rec.TenantID),
			zap.Error(err))
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
