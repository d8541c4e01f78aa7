// Package cache keeps a short-lived record of gateway transactions that were
// already settled so duplicate callbacks can be acknowledged without a
// database round trip. The database remains the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	settledKeyPrefix  = "settlement:callback:settled:"
	DefaultSettledTTL = 72 * time.Hour
)

// ProcessedCallbacks remembers settled gateway transaction ids.
type ProcessedCallbacks interface {
	Seen(ctx context.Context, gatewayTxnID string) (bool, error)
	Remember(ctx context.Context, gatewayTxnID, paymentID string) error
}

// RedisCallbacks stores markers as plain keys with a TTL.
type RedisCallbacks struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCallbacks(client *redis.Client, ttl time.Duration) *RedisCallbacks {
	if ttl <= 0 {
		ttl = DefaultSettledTTL
	}
	return &RedisCallbacks{client: client, ttl: ttl}
}

func (c *RedisCallbacks) Seen(ctx context.Context, gatewayTxnID string) (bool, error) {
	err := c.client.Get(ctx, settledKey(gatewayTxnID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

func (c *RedisCallbacks) Remember(ctx context.Context, gatewayTxnID, paymentID string) error {
	if err := c.client.Set(ctx, settledKey(gatewayTxnID), paymentID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func settledKey(gatewayTxnID string) string {
	return settledKeyPrefix + gatewayTxnID
}

// NoopCallbacks never reports a hit. It is used when REDIS_URL is unset.
type NoopCallbacks struct{}

func (NoopCallbacks) Seen(context.Context, string) (bool, error)     { return false, nil }
func (NoopCallbacks) Remember(context.Context, string, string) error { return nil }

// NewRedisClient parses redisURL and pings the server once.
func NewRedisClient(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	return client, nil
}
