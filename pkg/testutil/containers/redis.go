//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// counterKeyPattern matches every key written by the rate-limit counter store.
const counterKeyPattern = "ratelimit:*"

// RedisContainer is the shared Redis 7 instance behind the counter store
// suites. PEXPIRETIME, used to assert pinned expiries, needs 7.0+.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	client, err := connectRedis(ctx, container)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect redis container: %v", err)
	}
	// No t.Cleanup: Manager shares the container across suites and Ryuk
	// reaps it when the test binary exits.
	return &RedisContainer{Container: container, Client: client}
}

func connectRedis(ctx context.Context, container *tcredis.RedisContainer) (*redis.Client, error) {
	url, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// ClearCounters deletes every rate-limit counter so each test starts from
// an empty window.
func (r *RedisContainer) ClearCounters(ctx context.Context) error {
	iter := r.Client.Scan(ctx, 0, counterKeyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}
