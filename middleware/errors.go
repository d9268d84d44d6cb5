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
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/tomoncle/gear/types"
)

// Handler adapts an error-returning handler to http.HandlerFunc. Returned
// errors are rendered through WriteError, so handlers can simply return
// repository and validation errors.
func Handler(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(w, r, err)
		}
	}
}

// WriteError renders err as the standard JSON error envelope. HTTPError
// values keep their status code, anything else becomes a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	response := types.NewErrorResponse(err, r.URL.Path, r.Method)
	writeJSON(w, response.StatusCode, response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// Recoverer converts panics into 500 envelopes and logs the stack.
// http.ErrAbortHandler panics are re-raised so aborted requests keep their
// net/http semantics.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithField("panic", fmt.Sprintf("%v", rec)).
					Error("panic recovered\n" + string(debug.Stack()))
				WriteError(w, r, types.NewHTTPError(
					http.StatusInternalServerError,
					types.TypeInternalServerError,
					"internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// NotFound renders the 404 envelope; meant for chi's NotFound hook.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, types.NewNotFound(fmt.Sprintf("path %s not found", r.URL.Path)))
}

// MethodNotAllowed renders the 405 envelope; meant for chi's
// MethodNotAllowed hook.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, types.NewHTTPError(
		http.StatusMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path)))
}
