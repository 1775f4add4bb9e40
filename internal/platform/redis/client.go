package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"senderguard/internal/platform/config"
)

// Client wraps the go-redis client used as the shared rate-limit counter store.
type Client struct {
	*redis.Client
}

// New connects to Redis. Returns nil if the URL is empty (Redis not configured),
// in which case callers fall back to the in-memory counter store.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return &Client{Client: client}, nil
}

// Health backs the "redis" entry of GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
