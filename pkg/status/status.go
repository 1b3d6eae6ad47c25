package status

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
)

const (
	// KeyPrefix namespaces the volatile status hashes
	KeyPrefix = "agent:status:"

	// TTL is how long a status hash lives without a refresh. Statuses are
	// operational hints, not records; stale ones expire on their own.
	TTL = 24 * time.Hour

	// UpdatedBy identifies this writer in the status hash
	UpdatedBy = "k8s-worker"
)

// Config holds status store connection settings
type Config struct {
	Addr string
	DB   int
}

// Store writes volatile per-agent status snapshots to Redis. Writes are
// best-effort: callers log failures and continue, so loss of the status
// store never blocks orchestration.
type Store struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewStore connects to Redis and verifies the connection
func NewStore(cfg *Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: client,
		log:    log.WithComponent("status"),
	}, nil
}

// NewStoreWithClient wraps an existing client, used by tests
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{
		client: client,
		log:    log.WithComponent("status"),
	}
}

// Set writes the agent's status hash and refreshes its TTL. Empty detail
// values are dropped so the hash only carries meaningful fields.
func (s *Store) Set(ctx context.Context, agentName, statusLabel string, details map[string]string) error {
	fields := map[string]interface{}{
		"agent_name":   agentName,
		"status":       statusLabel,
		"last_updated": time.Now().UTC().Format(time.RFC3339),
		"updated_by":   UpdatedBy,
	}
	for k, v := range details {
		if k == "" || v == "" {
			continue
		}
		fields[k] = v
	}

	key := KeyPrefix + agentName
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		metrics.StatusWriteFailuresTotal.Inc()
		return fmt.Errorf("failed to write agent status: %w", err)
	}
	if err := s.client.Expire(ctx, key, TTL).Err(); err != nil {
		metrics.StatusWriteFailuresTotal.Inc()
		return fmt.Errorf("failed to set status ttl: %w", err)
	}
	return nil
}

// Get returns the agent's status hash, or an empty map when none exists
func (s *Store) Get(ctx context.Context, agentName string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, KeyPrefix+agentName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read agent status: %w", err)
	}
	return fields, nil
}

// Ping verifies the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
