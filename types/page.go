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
	"regexp"
	"strings"
)

// Sort directions accepted by order clauses and sort query parameters.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Page size bounds applied by PageRequest getters.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var orderDirectionPattern = regexp.MustCompile(`(?i)^(ASC|DESC)$`)

// ValidOrderDirection reports whether s is ASC or DESC, ignoring case.
func ValidOrderDirection(s string) bool {
	return orderDirectionPattern.MatchString(s)
}

// NormalizeOrder renders "field DIRECTION" with the direction upper-cased,
// or just the field when direction is empty. The bool result is false for
// an unknown direction.
func NormalizeOrder(field, direction string) (string, bool) {
	if direction == "" {
		return field, true
	}
	if !ValidOrderDirection(direction) {
		return "", false
	}
	return field + " " + strings.ToUpper(direction), true
}

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// And combines the filter with another clause, both sides parenthesized.
func (f *QueryFilter) And(schema string, args ...interface{}) *QueryFilter {
	return f.combine("AND", schema, args)
}

// Or combines the filter with another clause, both sides parenthesized.
func (f *QueryFilter) Or(schema string, args ...interface{}) *QueryFilter {
	return f.combine("OR", schema, args)
}

func (f *QueryFilter) combine(op, schema string, args []interface{}) *QueryFilter {
	merged := make([]interface{}, 0, len(f.Args)+len(args))
	merged = append(merged, f.Args...)
	merged = append(merged, args...)
	return &QueryFilter{
		Schema: "(" + f.Schema + ") " + op + " (" + schema + ")",
		Args:   merged,
	}
}

// SearchFilter matches a single column against a value with contains
// semantics, ignoring case.
type SearchFilter struct {
	Field string
	Value string
}

// PageRequest describes pagination, optional filtering, searching, ordering,
// column selection, and relation loading for a paged query.
type PageRequest struct {
	page        int
	pageSize    int
	filter      *QueryFilter
	orders      []string // "id ASC", "name DESC"
	search      []SearchFilter
	searchAll   string
	searchAllIn []string
	columns     []string
	relations   []string
	withDeleted bool
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	if p.pageSize > MaxPageSize {
		p.pageSize = MaxPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = DefaultPage
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

func (p *PageRequest) GetSearch() []SearchFilter {
	return p.search
}

func (p *PageRequest) GetSearchAll() string {
	return p.searchAll
}

func (p *PageRequest) GetSearchAllColumns() []string {
	return p.searchAllIn
}

func (p *PageRequest) GetColumns() []string {
	return p.columns
}

func (p *PageRequest) GetRelations() []string {
	return p.relations
}

func (p *PageRequest) IsWithDeleted() bool {
	return p.withDeleted
}

// WithFilter sets the filter and returns the request for chaining.
func (p *PageRequest) WithFilter(filter *QueryFilter) *PageRequest {
	p.filter = filter
	return p
}

// WithOrders appends order clauses, e.g. "name ASC".
func (p *PageRequest) WithOrders(orders ...string) *PageRequest {
	p.orders = append(p.orders, orders...)
	return p
}

// WithSearch appends a per-column search term.
func (p *PageRequest) WithSearch(field, value string) *PageRequest {
	p.search = append(p.search, SearchFilter{Field: field, Value: value})
	return p
}

// WithSearchAll sets a term matched against every searchable column.
func (p *PageRequest) WithSearchAll(value string) *PageRequest {
	p.searchAll = value
	return p
}

// WithSearchAllColumns sets the columns the search-all term applies to.
func (p *PageRequest) WithSearchAllColumns(columns ...string) *PageRequest {
	p.searchAllIn = append(p.searchAllIn, columns...)
	return p
}

// WithColumns restricts the selected columns.
func (p *PageRequest) WithColumns(columns ...string) *PageRequest {
	p.columns = append(p.columns, columns...)
	return p
}

// WithRelations appends relations to load with the result rows.
func (p *PageRequest) WithRelations(relations ...string) *PageRequest {
	p.relations = append(p.relations, relations...)
	return p
}

// WithDeleted includes soft deleted rows in the result.
func (p *PageRequest) WithDeleted(include bool) *PageRequest {
	p.withDeleted = include
	return p
}

// NewPageRequest constructs a PageRequest with filter and order settings.
func NewPageRequest(page int, pageSize int, filter *QueryFilter, orders []string) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, filter: filter, orders: orders}
}

// NewPageRequestWithFilter constructs a PageRequest with a filter only.
func NewPageRequestWithFilter(page int, pageSize int, filter *QueryFilter) *PageRequest {
	return NewPageRequest(page, pageSize, filter, make([]string, 0))
}

// NewPageRequestWithOrders constructs a PageRequest with ordering only.
func NewPageRequestWithOrders(page int, pageSize int, orders []string) *PageRequest {
	return NewPageRequest(page, pageSize, nil, orders)
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, make([]string, 0))
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int  `json:"page"`
	PageSize int  `json:"size"`
	Total    int  `json:"total"`
	Pages    int  `json:"pages"`
	Items    []*T `json:"items"`
}

// NewPagination builds the paged response for a request, computing the
// page count from total and page size.
func NewPagination[T any](request *PageRequest, total int, items []*T) *Pagination[T] {
	if items == nil {
		items = make([]*T, 0)
	}
	size := request.GetPageSize()
	pages := 0
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return &Pagination[T]{
		Page:     request.GetPage(),
		PageSize: size,
		Total:    total,
		Pages:    pages,
		Items:    items,
	}
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}
