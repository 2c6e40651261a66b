package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/folio/pkg/search"
)

const (
	schemaKeyPrefix  = "folio:schema:"
	defaultSchemaTTL = 5 * time.Minute
)

// RedisConfig configures the shared cache connection
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	SchemaTTL  time.Duration
}

// RedisClient caches tenant schema snapshots shared across replicas of the
// service
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config RedisConfig) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisClientFromClient(client, config.SchemaTTL), nil
}

// NewRedisClientFromClient wraps an existing client
func NewRedisClientFromClient(client *redis.Client, ttl time.Duration) *RedisClient {
	if ttl <= 0 {
		ttl = defaultSchemaTTL
	}
	return &RedisClient{client: client, ttl: ttl}
}

func schemaKey(organizationID string) string {
	return schemaKeyPrefix + organizationID
}

// GetSchema retrieves an organization's schema snapshot, nil on a miss
func (c *RedisClient) GetSchema(ctx context.Context, organizationID string) (*search.Schema, error) {
	key := schemaKey(organizationID)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var schema search.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		// corrupt entries are dropped so the next load repopulates them
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	return &schema, nil
}

// SetSchema stores an organization's schema snapshot
func (c *RedisClient) SetSchema(ctx context.Context, organizationID string, schema *search.Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return c.client.Set(ctx, schemaKey(organizationID), data, c.ttl).Err()
}

// InvalidateSchema removes an organization's schema snapshot
func (c *RedisClient) InvalidateSchema(ctx context.Context, organizationID string) error {
	return c.client.Del(ctx, schemaKey(organizationID)).Err()
}

// InvalidatePatterns removes keys matching patterns
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// InvalidateAllSchemas removes every cached schema snapshot
func (c *RedisClient) InvalidateAllSchemas(ctx context.Context) error {
	return c.InvalidatePatterns(ctx, schemaKeyPrefix+"*")
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetPoolStats returns connection pool statistics
func (c *RedisClient) GetPoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
