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
	"net/http"

	"github.com/tomoncle/gear/database"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
)

// DBSession injects the database handle into the request context so
// repositories resolve it through database.FromContext instead of the
// process-wide connection. A nil db falls back to the process-wide
// connection at request time.
func DBSession(db *bun.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := db
			if handle == nil {
				handle = database.GetDB()
			}
			if handle == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(database.NewContext(r.Context(), handle)))
		})
	}
}

// DBTransaction wraps each request in a Bun transaction carried by the
// request context. The transaction commits when the handler finishes with
// a status below 500 and rolls back on 5xx responses and panics; panics
// are re-raised for the Recoverer, which must sit outside this middleware.
func DBTransaction(db *bun.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := db
			if handle == nil {
				handle = database.GetDB()
			}
			if handle == nil {
				next.ServeHTTP(w, r)
				return
			}

			tx, err := handle.BeginTx(r.Context(), nil)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			var committed bool
			defer func() {
				if rec := recover(); rec != nil {
					_ = tx.Rollback()
					panic(rec)
				}
				if !committed {
					_ = tx.Rollback()
				}
			}()

			next.ServeHTTP(ww, r.WithContext(database.NewContext(r.Context(), tx)))

			if ww.Status() < http.StatusInternalServerError {
				committed = true
				if err := tx.Commit(); err != nil {
					log.WithError(err).Error("failed to commit request transaction")
				}
			}
		})
	}
}
