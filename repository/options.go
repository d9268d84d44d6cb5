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

package repository

import (
	"fmt"
	"strings"

	"github.com/tomoncle/gear/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

// applySelectOptions translates find options onto a select query. Column
// entries naming a declared relation are routed to Relation instead of the
// column list.
func applySelectOptions(q *bun.SelectQuery, table *schema.Table, opts *types.FindOptions) (*bun.SelectQuery, error) {
	if opts == nil {
		return q, nil
	}
	q = applyWhere(q, opts)
	for _, relation := range opts.Relations {
		q = q.Relation(relation)
	}
	if len(opts.Columns) > 0 {
		columns := make([]string, 0, len(opts.Columns))
		for _, column := range opts.Columns {
			if table != nil {
				if _, ok := table.Relations[column]; ok {
					q = q.Relation(column)
					continue
				}
			}
			columns = append(columns, column)
		}
		if len(columns) > 0 {
			q = q.Column(columns...)
		}
	}
	if err := validateOrders(opts.Order); err != nil {
		return nil, err
	}
	if len(opts.Order) > 0 {
		q = q.Order(opts.Order...)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	return q, nil
}

// applyWhere applies only the filter side of the options: where clauses
// chained with AND plus soft delete visibility. Count and Exists use it
// directly so pagination settings never leak into them.
func applyWhere(q *bun.SelectQuery, opts *types.FindOptions) *bun.SelectQuery {
	if opts == nil {
		return q
	}
	for _, filter := range opts.Where {
		if filter != nil {
			q = q.Where(filter.Schema, filter.Args...)
		}
	}
	if opts.WithDeleted {
		q = q.WhereAllWithDeleted()
	}
	return q
}

func applyUpdateOptions(q *bun.UpdateQuery, opts *types.FindOptions) *bun.UpdateQuery {
	if opts == nil {
		return q
	}
	for _, filter := range opts.Where {
		if filter != nil {
			q = q.Where(filter.Schema, filter.Args...)
		}
	}
	return q
}

func applyDeleteOptions(q *bun.DeleteQuery, opts *types.FindOptions) *bun.DeleteQuery {
	if opts == nil {
		return q
	}
	for _, filter := range opts.Where {
		if filter != nil {
			q = q.Where(filter.Schema, filter.Args...)
		}
	}
	return q
}

// applyPageRequest translates the filter side of a page request onto a
// select query: query filter, per-field search, search-all, column
// selection, relations, and soft delete visibility. Order, offset, and
// limit are applied by the caller after counting. Order entries are
// validated here so a bad direction fails before any query runs.
func applyPageRequest(q *bun.SelectQuery, table *schema.Table, page *types.PageRequest, name dialect.Name) (*bun.SelectQuery, error) {
	if filter := page.GetFilter(); filter != nil {
		q = q.Where(filter.Schema, filter.Args...)
	}
	for _, search := range page.GetSearch() {
		q = appendContains(q, name, false, search.Field, search.Value)
	}
	if term := page.GetSearchAll(); term != "" {
		if columns := page.GetSearchAllColumns(); len(columns) > 0 {
			q = q.WhereGroup(" AND ", func(sub *bun.SelectQuery) *bun.SelectQuery {
				for i, column := range columns {
					sub = appendContains(sub, name, i > 0, column, term)
				}
				return sub
			})
		}
	}
	if columns := page.GetColumns(); len(columns) > 0 {
		selected := make([]string, 0, len(columns))
		for _, column := range columns {
			if table != nil {
				if _, ok := table.Relations[column]; ok {
					q = q.Relation(column)
					continue
				}
			}
			selected = append(selected, column)
		}
		if len(selected) > 0 {
			q = q.Column(selected...)
		}
	}
	for _, relation := range page.GetRelations() {
		q = q.Relation(relation)
	}
	if err := validateOrders(page.GetOrders()); err != nil {
		return nil, err
	}
	if page.IsWithDeleted() {
		q = q.WhereAllWithDeleted()
	}
	return q, nil
}

// appendContains adds a case-insensitive contains condition on the column.
// Postgres uses ILIKE, everything else lowercases both sides; the column is
// cast to text first so non-string columns can be searched too.
func appendContains(q *bun.SelectQuery, name dialect.Name, or bool, field, value string) *bun.SelectQuery {
	pattern := "%" + value + "%"
	var expr string
	switch name {
	case dialect.PG:
		expr = "CAST(? AS TEXT) ILIKE ?"
	case dialect.MySQL:
		expr = "LOWER(CAST(? AS CHAR)) LIKE LOWER(?)"
	default:
		expr = "LOWER(CAST(? AS TEXT)) LIKE LOWER(?)"
	}
	if or {
		return q.WhereOr(expr, bun.Ident(field), pattern)
	}
	return q.Where(expr, bun.Ident(field), pattern)
}

// validateOrders rejects order entries whose direction is not ASC or DESC.
// Entries without a direction are allowed.
func validateOrders(orders []string) error {
	for _, order := range orders {
		entry := strings.TrimSpace(order)
		if idx := strings.LastIndexByte(entry, ' '); idx >= 0 {
			direction := strings.TrimSpace(entry[idx+1:])
			if !types.ValidOrderDirection(direction) {
				return types.NewBadRequest(
					fmt.Sprintf("invalid sort direction %q, expected ASC or DESC", direction),
					"query", "sort")
			}
		}
	}
	return nil
}
