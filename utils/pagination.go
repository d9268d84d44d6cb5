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

package utils

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/tomoncle/gear/types"
)

// Query parameter names recognized by ParsePageRequest. The sort and search
// parameters repeat, columns is a single comma-separated list.
const (
	ParamPage      = "page"
	ParamSize      = "size"
	ParamSort      = "sort"
	ParamSearch    = "search"
	ParamSearchAll = "search_all"
	ParamColumns   = "columns"
)

// QuerySchema restricts which columns a request may sort, search, and
// select. Empty lists allow every column, Blocked always wins. Matching is
// case-insensitive.
type QuerySchema struct {
	Sortable   []string
	Searchable []string
	Selectable []string
	Blocked    []string
}

// Block adds columns to the block list and returns the schema for chaining.
func (qs *QuerySchema) Block(columns ...string) *QuerySchema {
	qs.Blocked = append(qs.Blocked, columns...)
	return qs
}

func (qs *QuerySchema) CanSort(column string) bool {
	if qs == nil {
		return true
	}
	return !containsFold(qs.Blocked, column) && (len(qs.Sortable) == 0 || containsFold(qs.Sortable, column))
}

func (qs *QuerySchema) CanSearch(column string) bool {
	if qs == nil {
		return true
	}
	return !containsFold(qs.Blocked, column) && (len(qs.Searchable) == 0 || containsFold(qs.Searchable, column))
}

func (qs *QuerySchema) CanSelect(column string) bool {
	if qs == nil {
		return true
	}
	return !containsFold(qs.Blocked, column) && (len(qs.Selectable) == 0 || containsFold(qs.Selectable, column))
}

// SearchableColumns returns the columns a search-all term applies to.
func (qs *QuerySchema) SearchableColumns() []string {
	if qs == nil {
		return nil
	}
	var columns []string
	for _, column := range qs.Searchable {
		if !containsFold(qs.Blocked, column) {
			columns = append(columns, column)
		}
	}
	return columns
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// ParsePageRequest builds a page request from URL query values, validating
// them against the schema. A nil schema allows everything. Invalid input
// yields a 400 error whose location names the offending parameter.
func ParsePageRequest(values url.Values, schema *QuerySchema) (*types.PageRequest, error) {
	page := types.DefaultPage
	if raw := values.Get(ParamPage); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, types.NewBadRequest(fmt.Sprintf("page must be a positive integer, got %q", raw), "query", ParamPage)
		}
		page = n
	}

	size := types.DefaultPageSize
	if raw := values.Get(ParamSize); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > types.MaxPageSize {
			return nil, types.NewBadRequest(fmt.Sprintf("size must be between 1 and %d, got %q", types.MaxPageSize, raw), "query", ParamSize)
		}
		size = n
	}

	request := types.NewDefaultPageRequest(page, size)

	for _, raw := range values[ParamSort] {
		if raw == "" {
			continue
		}
		field, direction := raw, ""
		if idx := strings.LastIndex(raw, ":"); idx >= 0 {
			field, direction = raw[:idx], raw[idx+1:]
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, types.NewBadRequest("sort must use the field:direction format", "query", ParamSort)
		}
		if !schema.CanSort(field) {
			return nil, types.NewBadRequest(fmt.Sprintf("sorting by %q is not allowed", field), "query", ParamSort)
		}
		clause, ok := types.NormalizeOrder(field, strings.TrimSpace(direction))
		if !ok {
			return nil, types.NewBadRequest(fmt.Sprintf("invalid sort direction %q, expected ASC or DESC", direction), "query", ParamSort)
		}
		request.WithOrders(clause)
	}

	for _, raw := range values[ParamSearch] {
		if raw == "" {
			continue
		}
		idx := strings.Index(raw, ":")
		if idx <= 0 {
			return nil, types.NewBadRequest("search must use the field:value format", "query", ParamSearch)
		}
		field, value := strings.TrimSpace(raw[:idx]), raw[idx+1:]
		if !schema.CanSearch(field) {
			return nil, types.NewBadRequest(fmt.Sprintf("searching by %q is not allowed", field), "query", ParamSearch)
		}
		request.WithSearch(field, value)
	}

	if raw := values.Get(ParamSearchAll); raw != "" {
		request.WithSearchAll(raw)
		request.WithSearchAllColumns(schema.SearchableColumns()...)
	}

	if raw := values.Get(ParamColumns); raw != "" {
		for _, column := range strings.Split(raw, ",") {
			column = strings.TrimSpace(column)
			if column == "" {
				continue
			}
			if !schema.CanSelect(column) {
				return nil, types.NewBadRequest(fmt.Sprintf("selecting column %q is not allowed", column), "query", ParamColumns)
			}
			request.WithColumns(column)
		}
	}

	return request, nil
}

// SchemaFromModel derives a permissive QuerySchema from a Bun model: every
// declared column is sortable, searchable, and selectable. Narrow it with
// Block or by trimming the lists.
func SchemaFromModel(model interface{}) *QuerySchema {
	columns := ColumnsOf(model)
	return &QuerySchema{
		Sortable:   columns,
		Searchable: columns,
		Selectable: columns,
	}
}

// ColumnsOf lists the column names a Bun model struct declares through its
// tags. Embedded structs contribute their columns, relation and m2m fields
// do not map to columns and are skipped.
func ColumnsOf(model interface{}) []string {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return structColumns(t)
}

func structColumns(t reflect.Type) []string {
	var columns []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		if isBunBaseModel(field.Type) {
			continue
		}
		tag := field.Tag.Get("bun")
		if tag == "-" {
			continue
		}
		if isRelationTag(tag) {
			continue
		}
		if field.Anonymous && tag == "" && field.Type.Kind() == reflect.Struct {
			columns = append(columns, structColumns(field.Type)...)
			continue
		}
		name := strings.Split(tag, ",")[0]
		if strings.Contains(name, ":") {
			name = ""
		}
		if name == "" {
			name = CamelToSnake(field.Name)
		}
		columns = append(columns, name)
	}
	return columns
}

func isRelationTag(tag string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.HasPrefix(part, "rel:") || strings.HasPrefix(part, "m2m:") {
			return true
		}
	}
	return false
}

func isBunBaseModel(t reflect.Type) bool {
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == "github.com/uptrace/bun" &&
		t.Name() == "BaseModel"
}
