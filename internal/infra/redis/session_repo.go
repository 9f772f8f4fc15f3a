package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"whatsapp-ai-tutor/internal/domain"
	"whatsapp-ai-tutor/internal/domain/model"
	"whatsapp-ai-tutor/internal/domain/ports/repository"
	"whatsapp-ai-tutor/internal/infra/security"
)

var _ repository.ChatSessionRepository = (*SessionRepo)(nil)

// SessionRepo stores sessions in redis under a per-student key with a TTL, so
// idle conversations age out instead of living for the process lifetime.
// Message content is encrypted at rest when an EncryptionService is supplied.
type SessionRepo struct {
	client *redClient
	ttl    time.Duration
	enc    *security.EncryptionService
}

func NewSessionRepo(client *redClient, ttl time.Duration, enc *security.EncryptionService) *SessionRepo {
	return &SessionRepo{client: client, ttl: ttl, enc: enc}
}

func sessionKey(userID string) string { return "chat_session:" + userID }

func (r *SessionRepo) FindByUser(ctx context.Context, userID string) (*model.ChatSession, error) {
	data, err := r.client.Get(ctx, sessionKey(userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.decode(data)
}

func (r *SessionRepo) PutIfAbsent(ctx context.Context, s *model.ChatSession) (*model.ChatSession, bool, error) {
	data, err := r.encode(s)
	if err != nil {
		return nil, false, err
	}
	ok, err := r.client.SetNX(ctx, sessionKey(s.UserID), data, r.ttl)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return s, true, nil
	}
	existing, err := r.FindByUser(ctx, s.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *model.ChatSession) error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := r.encode(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(s.UserID), data, r.ttl)
}

func (r *SessionRepo) encode(s *model.ChatSession) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	if r.enc == nil {
		return string(b), nil
	}
	return r.enc.Encrypt(string(b))
}

func (r *SessionRepo) decode(data string) (*model.ChatSession, error) {
	if r.enc != nil {
		pt, err := r.enc.Decrypt(data)
		if err != nil {
			return nil, err
		}
		data = pt
	}
	var s model.ChatSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
