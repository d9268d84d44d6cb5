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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/gear/types"
)

const personSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	}
}`

func postJSON(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/people", strings.NewReader(body)))
	return rec
}

func TestValidateBodyPassesValidRequests(t *testing.T) {
	handler := ValidateBody(personSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the body must still be readable after validation
		var payload struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, payload.Name)
	}))

	rec := postJSON(t, handler, `{"name":"alice","age":3}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestValidateBodyMissingRequiredField(t *testing.T) {
	handler := ValidateBody(personSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for invalid bodies")
	}))

	rec := postJSON(t, handler, `{"age":3}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	response := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	require.NotEmpty(t, response.Detail)
	assert.Equal(t, "validation_error", response.Detail[0].Type)
	assert.Equal(t, []string{"body"}, response.Detail[0].Loc)
	assert.Contains(t, response.Detail[0].Msg, "name")
}

func TestValidateBodyConstraintViolation(t *testing.T) {
	handler := ValidateBody(personSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for invalid bodies")
	}))

	rec := postJSON(t, handler, `{"name":"alice","age":-1}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	response := decodeEnvelope(t, rec)
	require.NotEmpty(t, response.Detail)
	assert.Equal(t, "validation_error", response.Detail[0].Type)
	assert.Equal(t, []string{"body", "age"}, response.Detail[0].Loc)
}

func TestValidateBodyEmptyBody(t *testing.T) {
	handler := ValidateBody(personSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for empty bodies")
	}))

	rec := postJSON(t, handler, "  \n")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	response := decodeEnvelope(t, rec)
	require.Len(t, response.Detail, 1)
	assert.Equal(t, types.TypeBadRequest, response.Detail[0].Type)
	assert.Equal(t, "request body is required", response.Detail[0].Msg)
	assert.Equal(t, []string{"body"}, response.Detail[0].Loc)
}

func TestValidateBodyMalformedJSON(t *testing.T) {
	handler := ValidateBody(personSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for malformed bodies")
	}))

	rec := postJSON(t, handler, "{")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	response := decodeEnvelope(t, rec)
	require.Len(t, response.Detail, 1)
	assert.Equal(t, "request body is not valid JSON", response.Detail[0].Msg)
}

func TestValidateBodyBadSchemaPanics(t *testing.T) {
	assert.Panics(t, func() { ValidateBody("{") })
}
