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
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tomoncle/gear/types"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateBody compiles the JSON Schema once and validates each request
// body against it before the handler runs. Failures produce a 422 envelope
// with one detail per violated constraint, an empty body a 400. The body
// is restored afterwards so handlers can decode it as usual.
//
// The schema is a source literal, so a broken one panics at setup time the
// way regexp.MustCompile does.
func ValidateBody(schemaJSON string) func(http.Handler) http.Handler {
	schema := mustCompileSchema(schemaJSON)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if err != nil || len(bytes.TrimSpace(body)) == 0 {
				WriteError(w, r, types.NewBadRequest("request body is required", "body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			value, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
			if err != nil {
				WriteError(w, r, types.NewBadRequest("request body is not valid JSON", "body"))
				return
			}
			if err := schema.Validate(value); err != nil {
				var validationErr *jsonschema.ValidationError
				if errors.As(err, &validationErr) {
					response := types.NewErrorResponseDetails(
						http.StatusUnprocessableEntity,
						validationDetails(validationErr),
						r.URL.Path, r.Method)
					writeJSON(w, http.StatusUnprocessableEntity, response)
					return
				}
				WriteError(w, r, types.NewUnprocessableEntity(err.Error(), "body"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("middleware: invalid json schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		panic(fmt.Sprintf("middleware: invalid json schema: %v", err))
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("middleware: invalid json schema: %v", err))
	}
	return schema
}

// validationDetails flattens the cause tree into one detail per leaf, with
// loc pointing at the offending body path.
func validationDetails(err *jsonschema.ValidationError) []types.ErrorDetail {
	var details []types.ErrorDetail
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			details = append(details, types.ErrorDetail{
				Loc:  append([]string{"body"}, e.InstanceLocation...),
				Msg:  e.Error(),
				Type: "validation_error",
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)
	return details
}
