// Package redis wraps go-redis with a retrying Connect, a health check and a
// small SET NX based Locker used to keep periodic jobs single-flight across
// replicas.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	locker := redis.NewLocker(client, "nutrilabel:lock:")
//	lock, err := locker.Acquire(ctx, "sweeper", time.Minute)
//	if errors.Is(err, redis.ErrLockNotAcquired) {
//		return nil
//	}
//	defer lock.Release(ctx)
package redis
