// Package middleware provides chi middleware and handlers around the
// shared error envelope: error rendering, panic recovery, access logging
// with trusted proxy handling, rate limiting, JSON Schema body validation,
// and per-request database sessions and transactions.
package middleware
