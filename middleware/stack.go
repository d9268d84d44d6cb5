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

package middleware

import (
	"time"

	"github.com/tomoncle/gear/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
)

// StackConfig configures the standard middleware stack.
type StackConfig struct {
	DB                *bun.DB       // database handle for sessions; nil uses the process-wide connection
	Transactional     bool          // wrap each request in a transaction instead of a plain session
	RequestsPerMinute int           // 0 disables rate limiting
	RateLimitWindow   time.Duration // default one minute
	TrustedProxies    []string      // CIDRs or addresses allowed to set forwarded headers
	Logger            *utils.Logger // access logger, nil uses the package logger
	DisableAccessLog  bool
	DisableRecoverer  bool
}

// Apply attaches the standard stack to the router in fixed order: request
// id, real ip, access log, recoverer, rate limit, then database session or
// transaction.
func Apply(r chi.Router, config StackConfig) {
	r.Use(chimiddleware.RequestID)
	r.Use(RealIP(config.TrustedProxies...))
	if !config.DisableAccessLog {
		r.Use(RequestLogger(config.Logger))
	}
	if !config.DisableRecoverer {
		r.Use(Recoverer)
	}
	if config.RequestsPerMinute > 0 {
		window := config.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(RateLimit(config.RequestsPerMinute, window))
	}
	if config.Transactional {
		r.Use(DBTransaction(config.DB))
	} else {
		r.Use(DBSession(config.DB))
	}
}

// NewRouter returns a chi router with the standard stack attached and
// envelope handlers for unmatched routes and methods.
func NewRouter(config StackConfig) *chi.Mux {
	r := chi.NewRouter()
	Apply(r, config)
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	return r
}
