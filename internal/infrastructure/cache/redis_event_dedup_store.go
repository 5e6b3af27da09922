package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyfare/backend/internal/domain/shared"
)

// RedisEventDedupStore implements EventDedupStore using Redis. It is
// shared across instances so redelivered webhook events are dropped no
// matter which replica receives them.
type RedisEventDedupStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisEventDedupStore creates a new Redis-based dedup store
func NewRedisEventDedupStore(cfg RedisConfig) (*RedisEventDedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEventDedupStore{
		client:    client,
		keyPrefix: "webhook:event:",
	}, nil
}

// NewRedisEventDedupStoreWithClient creates a store with an existing
// Redis client. Useful for testing or when sharing a client.
func NewRedisEventDedupStoreWithClient(client *redis.Client, keyPrefix string) *RedisEventDedupStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:event:"
	}
	return &RedisEventDedupStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks an event as processed with a TTL. SETNX keeps the
// check-and-set atomic across replicas.
func (s *RedisEventDedupStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + eventID

	result, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}

	return result, nil
}

// IsProcessed checks if an event has already been processed
func (s *RedisEventDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	key := s.keyPrefix + eventID

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}

	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisEventDedupStore) Close() error {
	return s.client.Close()
}

var _ shared.EventDedupStore = (*RedisEventDedupStore)(nil)
