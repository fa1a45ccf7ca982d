package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/nutrilabel/pkg/redis"
)

// Locker hands out an exclusive lease for one sweep. It returns
// redis.ErrLockNotAcquired when another owner holds it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// RedisLocker shares the lease across replicas.
type RedisLocker struct {
	locker *redis.Locker
}

func NewRedisLocker(l *redis.Locker) *RedisLocker {
	if l == nil {
		panic("sweeper: nil redis locker")
	}
	return &RedisLocker{locker: l}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// LocalLocker guards a single process. Used with in-memory storage, where
// there is only one replica to coordinate.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, redis.ErrLockNotAcquired
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}
