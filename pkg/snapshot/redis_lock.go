package snapshot

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"time"
)

const lockRetryInterval = 50 * time.Millisecond

var errLockWait = errors.New("timed out waiting for session lock")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker shares session locks between every process using the same Redis.
// ttl bounds how long a crashed holder can block the session.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{client: client, prefix: "evaluation:session-lock:", ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(errLockWait, ctx.Err())
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(errLockWait, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{lockKey}, token).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", lockKey).Msg("failed to release session lock")
		}
	}, nil
}
