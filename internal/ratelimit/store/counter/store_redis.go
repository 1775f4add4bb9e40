package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"senderguard/pkg/platform/sentinel"
)

// incrementScript increments KEYS[1] and pins its expiry to ARGV[1] (unix ms)
// only when this call created the key. The PTTL guard also repairs a key that
// lost its expiry (e.g. written by another tool) so it cannot live forever.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIREAT', KEYS[1], ARGV[1])
end
return count
`)

// RedisStore implements ports.CounterStore on Redis with a single Lua script,
// so increment and expiry happen in one atomic step on the server. Expiry is
// judged by the Redis clock, which must be NTP-synced with the API hosts.
type RedisStore struct {
	client redis.Scripter
}

// NewRedis creates a Redis-backed counter store.
func NewRedis(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrementWithExpiryOnCreate(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{key}, expireAt.UnixMilli()).Int64()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, fmt.Errorf("increment %s: %w: %w", key, sentinel.ErrTimeout, err)
		}
		return 0, fmt.Errorf("increment %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return count, nil
}
