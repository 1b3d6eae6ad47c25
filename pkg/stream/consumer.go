package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
)

const (
	// DefaultStream is the durable stream orchestration commands arrive on
	DefaultStream = "orchestration:commands"

	// DefaultGroup is the consumer group shared by all worker replicas
	DefaultGroup = "k8s-orchestrator"

	// DefaultBlock is how long one Read blocks before returning empty
	DefaultBlock = time.Second
)

// Config holds consumer connection settings
type Config struct {
	Addr     string
	DB       int
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// Message is one raw entry read from the stream
type Message struct {
	ID     string
	Fields map[string]string
}

// Consumer reads orchestration commands from a Redis stream via a consumer
// group. All worker replicas share the group; each message is delivered to
// exactly one consumer until acknowledged.
type Consumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	log      zerolog.Logger
}

// NewConsumer connects to Redis and ensures the consumer group exists.
// Creating a group that already exists is not an error, so any number of
// replicas can start concurrently.
func NewConsumer(cfg *Config) (*Consumer, error) {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		return nil, errors.New("consumer name must not be empty")
	}
	if cfg.Block <= 0 {
		cfg.Block = DefaultBlock
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	c := &Consumer{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		block:    cfg.Block,
		log:      log.WithComponent("stream"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if err := c.EnsureGroup(ctx); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("stream", c.stream).
		Str("group", c.group).
		Str("consumer", c.consumer).
		Msg("Consumer group ready")

	return c, nil
}

// NewConsumerWithClient wraps an existing client, used by tests
func NewConsumerWithClient(client *redis.Client, stream, group, consumer string) *Consumer {
	return &Consumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    DefaultBlock,
		log:      log.WithComponent("stream"),
	}
}

// EnsureGroup creates the consumer group from the beginning of the stream,
// creating the stream itself when absent. BUSYGROUP from a concurrent or
// earlier creation is swallowed.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read blocks up to the configured interval for the next undelivered
// message. A nil message with a nil error means the wait timed out.
func (c *Consumer) Read(ctx context.Context) (*Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    c.block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			return &Message{ID: m.ID, Fields: stringFields(m.Values)}, nil
		}
	}
	return nil, nil
}

// Ack acknowledges a message so the group never redelivers it
func (c *Consumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", id, err)
	}
	return nil
}

// Depth reports stream length and the group's pending entry count
func (c *Consumer) Depth(ctx context.Context) (int64, int64, error) {
	length, err := c.client.XLen(ctx, c.stream).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read stream length: %w", err)
	}
	pending, err := c.client.XPending(ctx, c.stream, c.group).Result()
	if err != nil {
		return length, 0, fmt.Errorf("failed to read pending entries: %w", err)
	}
	return length, pending.Count, nil
}

// Ping verifies the Redis connection
func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (c *Consumer) Close() error {
	return c.client.Close()
}

func stringFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch s := v.(type) {
		case string:
			fields[k] = s
		case []byte:
			fields[k] = string(s)
		default:
			fields[k] = fmt.Sprint(v)
		}
	}
	return fields
}
