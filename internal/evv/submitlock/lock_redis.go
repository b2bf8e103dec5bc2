package submitlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carebridge/pkg/domain"
)

const lockKeyPrefix = "evv:submit:"

// RedisLock is a Redis-backed submission lock for distributed deployments.
// SET NX with a TTL gives atomic acquire-with-expiry, so a crashed holder
// never wedges the visit.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{client: client, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context, visitID domain.VisitID) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+visitID.String(), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire submission lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context, visitID domain.VisitID) error {
	if err := l.client.Del(ctx, lockKeyPrefix+visitID.String()).Err(); err != nil {
		return fmt.Errorf("release submission lock: %w", err)
	}
	return nil
}
