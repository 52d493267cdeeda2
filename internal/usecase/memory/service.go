// Package memory manages bounded, tenant-scoped conversation history.
// A session belongs to exactly one tenant; any access under a different
// tenant is a mismatch, never a silent miss.
package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

const lockStripes = 32

// Params bound session history.
type Params struct {
	MaxTurns     int // turns kept per session, oldest dropped first
	ContextTurns int // recent turns fed back into follow-up parsing
}

// Service is the conversation memory use case. Appends to the same session
// are serialized with striped locks so concurrent queries cannot interleave
// a read-modify-write.
type Service struct {
	store  Store
	params Params
	locks  [lockStripes]sync.Mutex
	logger *zap.Logger
}

// New creates the memory service.
func New(store Store, params Params, logger *zap.Logger) *Service {
	return &Service{store: store, params: params, logger: logger}
}

// Recent returns the last ContextTurns turns of a session and the entities
// they referenced, most recent first. A missing session yields empty
// history; a session owned by another tenant is a mismatch.
func (s *Service) Recent(ctx context.Context, tenantID, sessionID string) ([]domain.ConversationTurn, []domain.EntityRef, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if sess.TenantID != tenantID {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrTenantMismatch)
	}

	turns := sess.Turns
	if n := s.params.ContextTurns; n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	// Most recent entities first, deduplicated.
	seen := make(map[string]bool)
	var seeds []domain.EntityRef
	for i := len(turns) - 1; i >= 0; i-- {
		for _, ref := range turns[i].Entities {
			if seen[ref.Key()] {
				continue
			}
			seen[ref.Key()] = true
			seeds = append(seeds, ref)
		}
	}

	return turns, seeds, nil
}

// Append records one completed exchange. The session is created on first
// append; history beyond MaxTurns is dropped from the front while turn
// indexes keep growing, so ordering stays total across trims.
func (s *Service) Append(ctx context.Context, tenantID, sessionID, question, answer string, entities []domain.EntityRef) error {
	if sessionID == "" {
		return nil
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load session: %w", err)
		}
		sess = &domain.ConversationSession{SessionID: sessionID, TenantID: tenantID}
	}
	if sess.TenantID != tenantID {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrTenantMismatch)
	}

	index := 0
	if n := len(sess.Turns); n > 0 {
		index = sess.Turns[n-1].Index + 1
	}
	sess.Turns = append(sess.Turns, domain.ConversationTurn{
		Index:     index,
		Question:  question,
		Answer:    answer,
		Entities:  entities,
		Timestamp: time.Now().UTC(),
	})
	if limit := s.params.MaxTurns; limit > 0 && len(sess.Turns) > limit {
		sess.Turns = sess.Turns[len(sess.Turns)-limit:]
	}

	if err := s.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Clear deletes a session. Clearing a missing session succeeds; clearing a
// session owned by another tenant is rejected without touching it.
func (s *Service) Clear(ctx context.Context, tenantID, sessionID string) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	if sess.TenantID != tenantID {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrTenantMismatch)
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("Cleared session",
		zap.String("tenant_id", tenantID),
		zap.String("session_id", sessionID))
	return nil
}

func (s *Service) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}
