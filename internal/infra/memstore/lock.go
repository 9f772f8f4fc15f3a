package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"whatsapp-ai-tutor/internal/domain"
	"whatsapp-ai-tutor/internal/domain/ports/repository"
)

var _ repository.Locker = (*KeyedLocker)(nil)

type lockEntry struct {
	token   string
	expires time.Time
}

// KeyedLocker is the single-process counterpart of the redis locker: SetNX
// semantics over a plain map, with the same token/TTL contract.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]lockEntry)}
}

func (l *KeyedLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ { // 5 tries
		if l.tryOnce(key, token, ttl) {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond): // wait before retrying
		}
	}
	return "", domain.ErrSessionBusy
}

func (l *KeyedLocker) tryOnce(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, held := l.locks[key]; held && time.Now().Before(e.expires) {
		return false
	}
	l.locks[key] = lockEntry{token: token, expires: time.Now().Add(ttl)}
	return true
}

func (l *KeyedLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, held := l.locks[key]; held && e.token == token {
		delete(l.locks, key)
	}
	return nil
}
