// Package cache stores categorization results in Redis so repeated services
// skip the language model.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"subscribe/internal/ai"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "subscribe:category"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// CategoryCache implements ai.CategoryCache on Redis.
type CategoryCache struct {
	client redis.Cmdable
}

func NewCategoryCache(client redis.Cmdable) *CategoryCache {
	return &CategoryCache{client: client}
}

func redisKey(key string) string {
	return keyPrefix + ":" + key
}

func (c *CategoryCache) Get(ctx context.Context, key string) (*ai.Categorization, bool, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var out ai.Categorization
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached categorization: %w", err)
	}
	return &out, true, nil
}

func (c *CategoryCache) Set(ctx context.Context, key string, value *ai.Categorization, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
