package memory

import (
	"context"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Store is the consumer interface over session persistence (ISP).
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error)
	Put(ctx context.Context, sess *domain.ConversationSession) error
	Delete(ctx context.Context, sessionID string) error
}
