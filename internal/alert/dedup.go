package alert

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisDeduper marks alert keys in redis with SETNX.
type RedisDeduper struct {
	rdb setNXer
	ttl time.Duration
}

// NewRedisDeduper constructs a deduper over a redis client.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// AcquireOnce returns true if this is the first time key is seen within ttl.
// When redis is unavailable the alert is let through.
func (d *RedisDeduper) AcquireOnce(ctx context.Context, key string) bool {
	ok, err := d.rdb.SetNX(ctx, "phishtrack:alert:"+key, 1, d.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}
