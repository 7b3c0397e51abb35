package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
	"github.com/zatekoja/dentalprotocols/backend/pkg/retry"
)

// Client represents a Redis client
type Client struct {
	client *redis.Client
}

// connectRetry is short: the API keeps running without Redis
var connectRetry = retry.Config{
	MaxAttempts:     3,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        time.Second,
	BackoffFactor:   2.0,
	MaxTotalTimeout: 10 * time.Second,
}

// NewClient creates a new Redis client
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retry.DoWithLog(context.Background(), connectRetry, "Redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("Redis connection attempt failed")
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr(), err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Int("db", cfg.DB).Msg("Connected to Redis")
	return &Client{client: client}, nil
}

// NewClientFromRedis wraps an existing go-redis client
func NewClientFromRedis(client *redis.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
