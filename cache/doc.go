// Package cache provides a Redis-backed byte and JSON cache with atomic
// operation counters and SCAN-based pattern clearing.
package cache
