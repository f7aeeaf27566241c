package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/valuation"
)

const contextKey = "valuation:context"

// Client wraps the Redis client with dashboard-specific operations: the
// quote price cache and the mirrored valuation snapshot.
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Price caching operations

// SetPrice caches a last-close price with TTL
func (c *Client) SetPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	key := fmt.Sprintf("quote:%s:price", symbol)
	return c.rdb.Set(ctx, key, price, ttl).Err()
}

// GetPrice retrieves a cached price
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	key := fmt.Sprintf("quote:%s:price", symbol)
	return c.rdb.Get(ctx, key).Float64()
}

// Valuation snapshot mirror

// SaveValuationContext persists the latest valuation snapshot so a
// restart keeps the "as of" figure. No TTL: staleness is surfaced by
// the timestamp, not by expiry.
func (c *Client) SaveValuationContext(ctx context.Context, snap *valuation.Context) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal valuation context: %w", err)
	}
	return c.rdb.Set(ctx, contextKey, jsonData, 0).Err()
}

// LoadValuationContext retrieves the mirrored valuation snapshot.
// Returns (nil, nil) when none has been stored.
func (c *Client) LoadValuationContext(ctx context.Context) (*valuation.Context, error) {
	jsonData, err := c.rdb.Get(ctx, contextKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap valuation.Context
	if err := json.Unmarshal(jsonData, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal valuation context: %w", err)
	}
	return &snap, nil
}
