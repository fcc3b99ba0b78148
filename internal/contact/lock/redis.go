package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"identify/pkg/platform/sentinel"
)

const (
	// Redis key prefix for identity locks
	redisKeyPrefix = "identify:lock:"

	defaultTTL        = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serializes identity keys across replicas with SET NX PX.
type Redis struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
}

type RedisOption func(*Redis)

// WithTTL bounds how long a crashed holder can block a key.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Acquire takes every key in sorted order, retrying contended keys until ctx
// ends. Contention that outlives ctx returns sentinel.ErrLockHeld together
// with the context error; Redis failures return sentinel.ErrUnavailable.
func (r *Redis) Acquire(ctx context.Context, keys []string) (func(), error) {
	token := uuid.NewString()
	ordered := normalizeKeys(keys)
	taken := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := r.lock(ctx, redisKeyPrefix+key, token); err != nil {
			r.unlockAll(taken, token)
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		taken = append(taken, redisKeyPrefix+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unlockAll(taken, token) })
	}, nil
}

func (r *Redis) lock(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", sentinel.ErrLockHeld, ctxErr)
			}
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", sentinel.ErrLockHeld, ctx.Err())
		case <-ticker.C:
		}
	}
}

// unlockAll runs on a fresh context so a cancelled request still frees its keys.
func (r *Redis) unlockAll(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		// On failure the TTL frees the key.
		_ = releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Err()
	}
}
