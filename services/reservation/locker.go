package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// ErrLockNotObtained means the advisory lock was held by someone else for the
// whole retry budget.
var ErrLockNotObtained = errors.New("advisory lock not obtained")

// Lock is a held advisory lock. Release is safe to call exactly once and must
// run on every exit path.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out advisory locks keyed by string. Production uses Redis;
// tests use an in-process implementation.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// SingletonLocker additionally supports single-shot acquisition for
// "at most one in flight" guards like the scheduler run lock.
type SingletonLocker interface {
	Locker
	TryObtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker is the production Locker built on redislock. Obtain retries
// briefly so short critical sections (one transition) don't bounce callers.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
	}
	lock, err := l.client.Obtain(ctx, key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// TryObtain attempts a single acquisition with no retries. Used for the
// singleton scheduler-run lock where contention means "skip this run".
func (l *RedisLocker) TryObtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func reservationLockKey(id string) string { return "lock:reservation:" + id }
