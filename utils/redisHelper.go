package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/dealerbooks/dealer_backend/config"
)

// CachedFetch reads key from redis, or calls fetch and caches its result for the
// ttl fetch returns. A ttl of zero or less returns the value without caching it.
// Redis failures are logged and never fail the read.
func CachedFetch[T any](ctx context.Context, key string, fetch func() (T, time.Duration, error)) (T, error) {
	logger := config.GetLogger()
	var cached T
	exists, err := config.GetRedisObject(ctx, key, &cached)
	if err != nil {
		config.LogError(logger, "utils", "CachedFetch", "redis read", key, err)
	} else if exists {
		return cached, nil
	}

	value, ttl, err := fetch()
	if err != nil {
		return value, err
	}
	if ttl <= 0 {
		return value, nil
	}
	if err := config.SetRedisObject(ctx, key, value, ttl); err != nil {
		config.LogError(logger, "utils", "CachedFetch", "redis write", key, err)
	}
	return value, nil
}

// TryLock takes a best-effort redis lock. The returned release func is never nil.
// ok is false when redis is unavailable or someone else holds the lock.
func TryLock(ctx context.Context, key string, ttl time.Duration, moduleName string, funcName string) (release func(), ok bool) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop, false
	}
	lock, err := locker.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(config.GetLogger(), moduleName, funcName, "obtain lock", key, err)
		}
		return noop, false
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), moduleName, funcName, "release lock", key, err)
		}
	}, true
}

func LockKey(parts ...any) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}
