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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := NewRedisClient(&RedisConfig{Addr: server.Addr()})
	require.NoError(t, err)
	c := NewRedisCache(client)
	t.Cleanup(func() { _ = c.Close() })
	return c, server
}

func TestCacheGetSet(t *testing.T) {
	c, server := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "greeting", []byte("hello"), time.Minute))
	value, ok := c.Get(ctx, "greeting")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), value)

	server.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "greeting")
	assert.False(t, ok, "entries expire after their ttl")
}

func TestCacheSetWithoutTTL(t *testing.T) {
	c, server := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "pinned", []byte("forever"), 0))
	server.FastForward(24 * time.Hour)

	value, ok := c.Get(ctx, "pinned")
	require.True(t, ok)
	assert.Equal(t, []byte("forever"), value)
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.SetJSON(ctx, "payload", payload{Name: "alice", Count: 3}, time.Minute))

	var got payload
	found, err := c.GetJSON(ctx, "payload", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "alice", Count: 3}, got)

	found, err = c.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheGetJSONDecodeError(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "broken", []byte("{not json"), 0))

	var target map[string]string
	found, err := c.GetJSON(ctx, "broken", &target)
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "failed to decode cached value")
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx), "no keys is a no-op")
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sess:1", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "sess:2", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "other:1", []byte("c"), 0))

	require.NoError(t, c.Clear(ctx, "sess:*"))
	_, ok := c.Get(ctx, "sess:1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "sess:2")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other:1")
	assert.True(t, ok, "non-matching keys survive")

	require.NoError(t, c.Clear(ctx, ""))
	_, ok = c.Get(ctx, "other:1")
	assert.False(t, ok, "an empty pattern clears everything")
}

func TestCacheStats(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, _ = c.Get(ctx, "missing")
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, _ = c.Get(ctx, "k")
	require.NoError(t, c.Delete(ctx, "k"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Deletes)
	assert.Equal(t, int64(0), stats.Errors)
}

func TestCacheHealthCheck(t *testing.T) {
	c, server := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.HealthCheck(ctx))

	server.Close()
	err := c.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}

func TestNewRedisCacheFromURL(t *testing.T) {
	server := miniredis.RunT(t)

	c, err := NewRedisCacheFromURL("redis://" + server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	value, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	_, err = NewRedisCacheFromURL("://nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(&RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 500 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisConfigDefaults(t *testing.T) {
	config := &RedisConfig{}
	applyRedisDefaults(config)

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 5, config.MinIdleConns)

	withURL := &RedisConfig{URL: "redis://example:6379"}
	applyRedisDefaults(withURL)
	assert.Empty(t, withURL.Addr, "an explicit url suppresses the address default")
}
