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

package types

import (
	"errors"
	"net/http"
	"time"
)

// Default type labels carried by the error constructors.
const (
	TypeBadRequest          = "Bad Request"
	TypeUnauthorized        = "unauthorized"
	TypeForbidden           = "forbidden"
	TypeNotFound            = "Not Found"
	TypeUnprocessableEntity = "Unprocessable Entity"
	TypeDuplicateValue      = "Duplicate Value"
	TypeRateLimit           = "Rate Limit"
	TypeInternalServerError = "Internal Server Error"
)

// HTTPError is an error carrying an HTTP status code, a short type label,
// and the location of the offending input, e.g. ["query", "sort"].
type HTTPError struct {
	StatusCode int      `json:"status_code"`
	Type       string   `json:"type"`
	Msg        string   `json:"msg"`
	Loc        []string `json:"loc"`

	cause error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.Type + ": " + e.Msg
}

// Unwrap exposes the wrapped cause, if any.
func (e *HTTPError) Unwrap() error {
	return e.cause
}

// WithType overrides the type label and returns the error for chaining.
func (e *HTTPError) WithType(errType string) *HTTPError {
	e.Type = errType
	return e
}

// WithCause attaches the underlying error and returns the error for chaining.
func (e *HTTPError) WithCause(cause error) *HTTPError {
	e.cause = cause
	return e
}

// Detail renders the error as a one element detail list.
func (e *HTTPError) Detail() []ErrorDetail {
	return []ErrorDetail{{Loc: e.Loc, Msg: e.Msg, Type: e.Type}}
}

// NewHTTPError creates an error with an explicit status code and type label.
func NewHTTPError(statusCode int, errType, msg string, loc ...string) *HTTPError {
	if loc == nil {
		loc = make([]string, 0)
	}
	return &HTTPError{StatusCode: statusCode, Type: errType, Msg: msg, Loc: loc}
}

// NewBadRequest creates a 400 error.
func NewBadRequest(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, TypeBadRequest, msg, loc...)
}

// NewUnauthorized creates a 401 error.
func NewUnauthorized(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, TypeUnauthorized, msg, loc...)
}

// NewForbidden creates a 403 error.
func NewForbidden(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, TypeForbidden, msg, loc...)
}

// NewNotFound creates a 404 error.
func NewNotFound(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, TypeNotFound, msg, loc...)
}

// NewUnprocessableEntity creates a 422 error.
func NewUnprocessableEntity(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, TypeUnprocessableEntity, msg, loc...)
}

// NewDuplicateValue creates a 422 error for unique constraint conflicts.
func NewDuplicateValue(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, TypeDuplicateValue, msg, loc...)
}

// NewRateLimit creates a 429 error.
func NewRateLimit(msg string, loc ...string) *HTTPError {
	return NewHTTPError(http.StatusTooManyRequests, TypeRateLimit, msg, loc...)
}

// AsHTTPError extracts an HTTPError from err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// ErrorDetail is a single entry of an error response body.
type ErrorDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ErrorResponse is the uniform error envelope written by the HTTP layer.
type ErrorResponse struct {
	Detail     []ErrorDetail `json:"detail"`
	StatusCode int           `json:"status_code"`
	Timestamp  string        `json:"timestamp"`
	Path       string        `json:"path"`
	Method     string        `json:"method"`
}

// NewErrorResponse builds the envelope for any error. Errors outside the
// HTTPError chain render as an internal server error without leaking the
// original message.
func NewErrorResponse(err error, path, method string) *ErrorResponse {
	httpErr, ok := AsHTTPError(err)
	if !ok {
		httpErr = NewHTTPError(http.StatusInternalServerError, TypeInternalServerError, TypeInternalServerError)
	}
	return &ErrorResponse{
		Detail:     httpErr.Detail(),
		StatusCode: httpErr.StatusCode,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       path,
		Method:     method,
	}
}

// NewErrorResponseDetails builds the envelope from an explicit detail list,
// used when a single request carries several validation failures.
func NewErrorResponseDetails(statusCode int, details []ErrorDetail, path, method string) *ErrorResponse {
	if details == nil {
		details = make([]ErrorDetail, 0)
	}
	return &ErrorResponse{
		Detail:     details,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       path,
		Method:     method,
	}
}
