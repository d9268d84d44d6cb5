/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/gear/utils"

	"github.com/redis/go-redis/v9"
)

// clearScanBatch limits the number of keys fetched per SCAN iteration.
const clearScanBatch = 100

// RedisConfig configures the Redis connection. URL takes precedence over
// the individual fields for address, credentials, and database; the tuned
// timeouts and pool settings always apply.
type RedisConfig struct {
	URL          string        `toml:"url" json:"url" env:"REDIS_URL"`
	Addr         string        `toml:"addr" json:"addr" env:"REDIS_ADDR"`
	Password     string        `toml:"password" json:"-" env:"REDIS_PASSWORD"`
	DB           int           `toml:"db" json:"db" env:"REDIS_DB"`
	DialTimeout  time.Duration `toml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout" json:"write_timeout"`
	PoolSize     int           `toml:"pool_size" json:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultRedisConfig returns the tuned connection defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}
}

func applyRedisDefaults(config *RedisConfig) {
	defaults := DefaultRedisConfig()
	if config.Addr == "" && config.URL == "" {
		config.Addr = defaults.Addr
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaults.DialTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PoolSize <= 0 {
		config.PoolSize = defaults.PoolSize
	}
	if config.MinIdleConns <= 0 {
		config.MinIdleConns = defaults.MinIdleConns
	}
}

// NewRedisClient builds a go-redis client from the config and verifies the
// connection with a ping before returning it.
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	applyRedisDefaults(config)

	var options *redis.Options
	if config.URL != "" {
		parsed, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		options = parsed
	} else {
		options = &redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}
	}
	options.DialTimeout = config.DialTimeout
	options.ReadTimeout = config.ReadTimeout
	options.WriteTimeout = config.WriteTimeout
	options.PoolSize = config.PoolSize
	options.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type redisCache struct {
	client   *redis.Client
	logger   *utils.Logger
	counters cacheCounters
}

// NewRedisCache wraps an existing go-redis client in the Cache interface.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client, logger: utils.NewLogger("CACHE")}
}

// NewRedisCacheFromURL connects to Redis via URL and returns a Cache.
func NewRedisCacheFromURL(url string) (Cache, error) {
	client, err := NewRedisClient(&RedisConfig{URL: url})
	if err != nil {
		return nil, err
	}
	return NewRedisCache(client), nil
}

// NewRedisCacheFromConfig connects to Redis via config and returns a Cache.
func NewRedisCacheFromConfig(config *RedisConfig) (Cache, error) {
	client, err := NewRedisClient(config)
	if err != nil {
		return nil, err
	}
	return NewRedisCache(client), nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.counters.misses.Add(1)
		} else {
			c.counters.errors.Add(1)
			c.logger.WithError(err).WithField("key", key).Warn("cache get failed")
		}
		return nil, false
	}
	c.counters.hits.Add(1)
	return value, true
}

func (c *redisCache) GetJSON(ctx context.Context, key string, target interface{}) (bool, error) {
	value, ok := c.Get(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(value, target); err != nil {
		c.counters.errors.Add(1)
		return false, fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.counters.errors.Add(1)
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	c.counters.sets.Add(1)
	return nil
}

func (c *redisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.counters.errors.Add(1)
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.counters.errors.Add(1)
		return fmt.Errorf("failed to delete cached keys: %w", err)
	}
	c.counters.deletes.Add(deleted)
	return nil
}

// Clear walks the keyspace with SCAN and deletes matches in batches. KEYS
// is never used so large databases stay responsive.
func (c *redisCache) Clear(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = "*"
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, clearScanBatch).Result()
		if err != nil {
			c.counters.errors.Add(1)
			return fmt.Errorf("failed to scan keys for %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.counters.errors.Add(1)
				return fmt.Errorf("failed to delete cached keys: %w", err)
			}
			c.counters.deletes.Add(deleted)
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *redisCache) Stats() CacheStats {
	return c.counters.snapshot()
}

func (c *redisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
