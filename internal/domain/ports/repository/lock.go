package repository

import (
	"context"
	"time"
)

// Locker provides per-key mutual exclusion. It guards the session store's
// check-then-act creation and serializes message handling for one student, so
// two messages arriving back-to-back reach the model in order.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
