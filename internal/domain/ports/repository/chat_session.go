package repository

import (
	"context"

	"whatsapp-ai-tutor/internal/domain/model"
)

// ChatSessionRepository is a key-value view of session storage: one live
// session per user id. Backends may evict (redis TTL) or not (in-memory).
type ChatSessionRepository interface {
	// FindByUser returns the live session for userID or domain.ErrNotFound.
	FindByUser(ctx context.Context, userID string) (*model.ChatSession, error)

	// PutIfAbsent stores s only when no session exists for its user id.
	// It returns the session that is now stored and whether the write happened;
	// when a session already existed, the stored one wins and is returned.
	PutIfAbsent(ctx context.Context, s *model.ChatSession) (*model.ChatSession, bool, error)

	// Save overwrites the session for its user id.
	Save(ctx context.Context, s *model.ChatSession) error
}
