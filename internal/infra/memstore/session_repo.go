// File: internal/infra/memstore/session_repo.go
package memstore

import (
	"context"
	"sync"

	"whatsapp-ai-tutor/internal/domain"
	"whatsapp-ai-tutor/internal/domain/model"
	"whatsapp-ai-tutor/internal/domain/ports/repository"
)

var _ repository.ChatSessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps sessions in process memory. Nothing is ever evicted, so a
// long-lived process accumulates one session per student; the redis backend is
// the answer when that matters.
type SessionRepo struct {
	mu     sync.Mutex
	byUser map[string]*model.ChatSession
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{byUser: make(map[string]*model.ChatSession)}
}

func (r *SessionRepo) FindByUser(ctx context.Context, userID string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.byUser[userID]; s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *SessionRepo) PutIfAbsent(ctx context.Context, s *model.ChatSession) (*model.ChatSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.byUser[s.UserID]; existing != nil {
		return existing, false, nil
	}
	r.byUser[s.UserID] = s
	return s, true, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *model.ChatSession) error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[s.UserID] = s
	return nil
}
