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
	"sync/atomic"
	"time"
)

// Cache is a byte-oriented cache with JSON conveniences. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// GetJSON decodes the cached value into target. The bool reports
	// whether the key was present; a present but undecodable value
	// returns an error.
	GetJSON(ctx context.Context, key string, target interface{}) (bool, error)

	// Set stores the value under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetJSON encodes the value as JSON and stores it under key.
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Clear removes all keys matching the glob pattern. An empty pattern
	// clears everything.
	Clear(ctx context.Context, pattern string) error

	// Stats returns a snapshot of the operation counters.
	Stats() CacheStats

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// CacheStats is a snapshot of cache operation counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

// cacheCounters tracks operation counts with atomics so concurrent callers
// never contend on a lock.
type cacheCounters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errors  atomic.Int64
}

func (c *cacheCounters) snapshot() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		Errors:  c.errors.Load(),
	}
}
