package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive leases backed by SET NX PX.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if client == nil {
		panic("redis: nil client")
	}
	return &Locker{client: client, prefix: prefix}
}

// Lock is a held lease. Release it when done; it expires on its own after the TTL.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire tries once to take the lease on key. It returns ErrLockNotAcquired
// when someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	full := l.prefix + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &Lock{locker: l, key: full, token: token}, nil
}

// Release drops the lease if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Key returns the full redis key of the lease.
func (lk *Lock) Key() string { return lk.key }
