package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"senderguard/internal/platform/config"
)

// Client wraps a franz-go producer client and its admin client.
type Client struct {
	*kgo.Client
	admin *kadm.Client
}

// New creates a Kafka client from the provided configuration.
// Returns nil if no brokers are configured (Kafka not configured).
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	return &Client{Client: cl, admin: kadm.NewClient(cl)}, nil
}

// EnsureTopic creates topic if it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	resps, err := c.admin.CreateTopics(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Health checks broker connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
