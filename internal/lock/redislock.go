package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes the key only while it still holds our token, so an
// expired holder cannot release a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Locker serialises work across API replicas with SET NX PX locks.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// Prefix is prepended to every key; defaults to "lock:".
	Prefix string
}

// Key joins parts into a lock key, e.g. Key("capacity", day, class).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// WithLock runs fn while holding key, polling every RetryBackoff until the
// lock is free or ctx ends. ttl bounds how long a crashed holder can block
// others; fn should finish well within it.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	key = l.prefix() + key
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() {
		// Release even when ctx is already cancelled.
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		switch {
		case ok:
			return nil
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
		case err != nil:
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l Locker) prefix() string {
	if l.Prefix == "" {
		return "lock:"
	}
	return l.Prefix
}
