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

// FindOptions narrows a lookup: selected columns, WHERE clauses combined
// with AND, order clauses, relations to load, and an offset/limit window.
// A nil FindOptions is valid everywhere and means no constraints.
type FindOptions struct {
	Columns     []string
	Where       []*QueryFilter
	Order       []string // "id ASC", "name DESC"
	Relations   []string
	Offset      int
	Limit       int
	WithDeleted bool
}

// NewFindOptions creates empty find options.
func NewFindOptions() *FindOptions {
	return &FindOptions{}
}

// WithWhere appends a WHERE clause.
func (o *FindOptions) WithWhere(schema string, args ...interface{}) *FindOptions {
	o.Where = append(o.Where, NewQueryFilter(schema, args...))
	return o
}

// WithFilter appends an already built filter.
func (o *FindOptions) WithFilter(filter *QueryFilter) *FindOptions {
	if filter != nil {
		o.Where = append(o.Where, filter)
	}
	return o
}

// WithColumns restricts the selected columns.
func (o *FindOptions) WithColumns(columns ...string) *FindOptions {
	o.Columns = append(o.Columns, columns...)
	return o
}

// WithOrder appends order clauses, e.g. "name ASC".
func (o *FindOptions) WithOrder(orders ...string) *FindOptions {
	o.Order = append(o.Order, orders...)
	return o
}

// WithRelations appends relations to load with the result rows.
func (o *FindOptions) WithRelations(relations ...string) *FindOptions {
	o.Relations = append(o.Relations, relations...)
	return o
}

// WithLimit sets the maximum number of rows.
func (o *FindOptions) WithLimit(limit int) *FindOptions {
	o.Limit = limit
	return o
}

// WithOffset sets the number of rows to skip.
func (o *FindOptions) WithOffset(offset int) *FindOptions {
	o.Offset = offset
	return o
}

// IncludeDeleted includes soft deleted rows in the result.
func (o *FindOptions) IncludeDeleted() *FindOptions {
	o.WithDeleted = true
	return o
}

// Merge combines two options. Clause lists concatenate, scalar fields take
// the non-zero value of other. Either side may be nil.
func (o *FindOptions) Merge(other *FindOptions) *FindOptions {
	if o == nil {
		return other
	}
	if other == nil {
		return o
	}
	merged := &FindOptions{
		Columns:     append(append([]string{}, o.Columns...), other.Columns...),
		Where:       append(append([]*QueryFilter{}, o.Where...), other.Where...),
		Order:       append(append([]string{}, o.Order...), other.Order...),
		Relations:   append(append([]string{}, o.Relations...), other.Relations...),
		Offset:      o.Offset,
		Limit:       o.Limit,
		WithDeleted: o.WithDeleted || other.WithDeleted,
	}
	if other.Offset != 0 {
		merged.Offset = other.Offset
	}
	if other.Limit != 0 {
		merged.Limit = other.Limit
	}
	return merged
}
