package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	key   string
	value []byte
	ttl   time.Duration
	err   error
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.key = key
	m.value = value
	m.ttl = ttl
	return m.err
}

// --- Tests ---

func TestWrite_RecordShape(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 90*24*time.Hour, zap.NewNop())

	err := repo.Write(context.Background(), Record{
		ID:         "q-123",
		TenantID:   "t1",
		SessionID:  "s1",
		Question:   "how did my campaigns do?",
		Answer:     "fine",
		Confidence: domain.ConfidenceMedium,
		LatencyMS:  240,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(store.key, "audit:t1:q-123") {
		t.Errorf("unexpected key %q", store.key)
	}
	if store.ttl != 90*24*time.Hour {
		t.Errorf("expected retention TTL, got %s", store.ttl)
	}

	var rec Record
	if err := json.Unmarshal(store.value, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.TenantID != "t1" || rec.Confidence != domain.ConfidenceMedium || rec.LatencyMS != 240 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected a timestamp filled in")
	}
}

func TestWrite_GeneratesIDWhenMissing(t *testing.T) {
	store := &mockStore{}
	repo := New(store, time.Hour, zap.NewNop())

	if err := repo.Write(context.Background(), Record{TenantID: "t1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec Record
	if err := json.Unmarshal(store.value, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestWrite_TruncatesLongFields(t *testing.T) {
	store := &mockStore{}
	repo := New(store, time.Hour, zap.NewNop())

	err := repo.Write(context.Background(), Record{
		TenantID: "t1",
		Question: strings.Repeat("q", maxQuestionLen+500),
		Answer:   strings.Repeat("a", maxAnswerLen+500),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec Record
	if err := json.Unmarshal(store.value, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rec.Question) != maxQuestionLen {
		t.Errorf("expected question truncated to %d, got %d", maxQuestionLen, len(rec.Question))
	}
	if len(rec.Answer) != maxAnswerLen {
		t.Errorf("expected answer truncated to %d, got %d", maxAnswerLen, len(rec.Answer))
	}
}

func TestWrite_StoreErrorSurfaces(t *testing.T) {
	store := &mockStore{err: errors.New("store down")}
	repo := New(store, time.Hour, zap.NewNop())

	if err := repo.Write(context.Background(), Record{TenantID: "t1"}); err == nil {
		t.Fatal("expected an error")
	}
}
