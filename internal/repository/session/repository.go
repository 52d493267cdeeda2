// Package session persists conversation sessions as JSON values with an
// idle TTL. Every read and write refreshes the TTL, so a session survives
// exactly as long as the conversation stays active.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/db"
	"github.com/acharyye/graphRAG/internal/domain"
)

var sessionKeyPrefix = domain.KeyPrefix + "session:"

// store is the consumer interface for session persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repository stores conversation sessions.
type Repository struct {
	store   store
	idleTTL time.Duration
	logger  *zap.Logger
}

// New creates a session repository. idleTTL bounds how long an inactive
// session is kept.
func New(s store, idleTTL time.Duration, logger *zap.Logger) *Repository {
	return &Repository{store: s, idleTTL: idleTTL, logger: logger}
}

// Get loads a session. A missing session maps to domain.ErrNotFound.
func (r *Repository) Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error) {
	data, err := r.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var sess domain.ConversationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Put stores a session and refreshes its idle TTL.
func (r *Repository) Put(ctx context.Context, sess *domain.ConversationSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.SessionID, err)
	}
	if err := r.store.SetWithTTL(ctx, sessionKey(sess.SessionID), data, r.idleTTL); err != nil {
		return fmt.Errorf("put session %s: %w", sess.SessionID, err)
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	if err := r.store.Del(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
