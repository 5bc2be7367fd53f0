package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"transaction-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const dashboardStatsKey = "dashboard:stats"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetDashboardStats returns the cached dashboard summary. ok is false on a
// cache miss.
func (c *Client) GetDashboardStats(ctx context.Context) (stats *models.DashboardStats, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, dashboardStatsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached stats: %w", err)
	}

	stats, err = decodeStats(raw)
	if err != nil {
		return nil, false, err
	}
	return stats, true, nil
}

// SetDashboardStats caches the dashboard summary for ttl
func (c *Client) SetDashboardStats(ctx context.Context, stats *models.DashboardStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return c.rdb.Set(ctx, dashboardStatsKey, raw, ttl).Err()
}

// InvalidateDashboardStats drops the cached dashboard summary
func (c *Client) InvalidateDashboardStats(ctx context.Context) error {
	return c.rdb.Del(ctx, dashboardStatsKey).Err()
}

func decodeStats(raw []byte) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, nil
}
