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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/tomoncle/gear/database"
	"github.com/tomoncle/gear/types"
	"github.com/tomoncle/gear/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db  *bun.DB // root connection, used for dialect and schema lookups
	idb bun.IDB // set when the repository is bound to a transaction
}

// NewRepository returns a generic repository backed by the provided Bun DB.
// A nil db falls back to the process-wide connection. Query methods resolve
// their executor from the context first, so calls made inside
// database.RunInTx share the transaction without changing call sites.
func NewRepository[T any](db *bun.DB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) root() *bun.DB {
	if r.db != nil {
		return r.db
	}
	return database.GetDB()
}

func (r *baseRepositoryImpl[T]) conn(ctx context.Context) bun.IDB {
	if r.idb != nil {
		return r.idb
	}
	return database.ContextDB(ctx, r.db)
}

func (r *baseRepositoryImpl[T]) tableInfo() *schema.Table {
	return database.ModelTable(r.root(), new(T))
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.root().Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.root().NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.root().NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.root().NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.root().NewDelete() }

func (r *baseRepositoryImpl[T]) ValsToSlice(entity ...*T) []*T {
	entities := make([]*T, len(entity))
	copy(entities, entity)
	return entities
}

func (r *baseRepositoryImpl[T]) Insert(ctx context.Context, entities ...*T) error {
	if len(entities) == 0 {
		return nil
	}
	rows := r.ValsToSlice(entities...)
	_, err := r.conn(ctx).NewInsert().Model(&rows).Exec(ctx)
	return wrapSQLError(err)
}

func (r *baseRepositoryImpl[T]) InsertAndReturn(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity cannot be nil")
	}
	query := r.conn(ctx).NewInsert().Model(entity)
	if r.root().HasFeature(feature.Returning) {
		query = query.Returning("*")
	}
	if _, err := query.Exec(ctx); err != nil {
		return nil, wrapSQLError(err)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	_, err := r.conn(ctx).NewUpdate().Model(entity).WherePK().Exec(ctx)
	return wrapSQLError(err)
}

func (r *baseRepositoryImpl[T]) UpdateColumns(ctx context.Context, id any, columns map[string]interface{}) (*types.UpdateResult, error) {
	if emptyID(id) {
		return nil, fmt.Errorf("id cannot be empty")
	}
	current, err := r.FindOneOrFail(ctx, types.NewFindOptions().WithWhere("id = ?", id))
	if err != nil {
		return nil, err
	}

	table := r.tableInfo()
	stored := reflect.ValueOf(current).Elem()
	changed := make(map[string]interface{}, len(columns))
	for column, next := range columns {
		field, ok := table.FieldMap[column]
		if !ok {
			return nil, types.NewBadRequest(fmt.Sprintf("unknown column %q", column), "body", column)
		}
		if !valuesEqual(field.Value(stored).Interface(), next) {
			changed[column] = next
		}
	}
	if len(changed) == 0 {
		return &types.UpdateResult{}, nil
	}

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)

	var entity T
	query := r.conn(ctx).NewUpdate().Model(&entity).Where("id = ?", id)
	for _, name := range names {
		query = query.Set("? = ?", bun.Ident(name), changed[name])
	}
	if _, ok := table.FieldMap["updated_at"]; ok {
		if _, explicit := changed["updated_at"]; !explicit {
			query = query.Set("updated_at = ?", time.Now().UTC())
		}
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	affected, _ := res.RowsAffected()
	return &types.UpdateResult{Affected: affected}, nil
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, conflictColumns []string, updateColumns []string, entities ...*T) error {
	if len(entities) == 0 {
		return nil
	}
	if len(updateColumns) == 0 {
		return fmt.Errorf("updateColumns cannot be empty")
	}
	rows := r.ValsToSlice(entities...)
	conn := r.conn(ctx)
	switch {
	case r.root().HasFeature(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, conn.NewInsert(), conflictColumns, updateColumns, rows)
	case r.root().HasFeature(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, conn.NewInsert(), updateColumns, rows)
	default:
		// Fallback: separate insert/update logic
		return r.upsertFallback(ctx, conn, rows)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, insertQuery *bun.InsertQuery, updateColumns []string, entities []*T) error {
	var assignments []string
	for _, column := range updateColumns {
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", bun.Ident(column), bun.Ident(column)))
	}
	_, err := insertQuery.
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")).
		Exec(ctx)
	return wrapSQLError(err)
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, insertQuery *bun.InsertQuery, conflictColumns, updateColumns []string, entities []*T) error {
	if len(conflictColumns) == 0 {
		conflictColumns = []string{"id"}
	}
	keyNames := strings.Join(conflictColumns, ",")
	var assignments []string
	for _, column := range updateColumns {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", bun.Ident(column), bun.Ident(column)))
	}
	_, err := insertQuery.
		Model(&entities).
		On("CONFLICT ("+keyNames+") DO UPDATE").
		Set(strings.Join(assignments, ", ")).
		Exec(ctx)
	return wrapSQLError(err)
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, conn bun.IDB, entities []*T) error {
	for _, entity := range entities {
		if _, err := conn.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := conn.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	if emptyID(id) {
		return fmt.Errorf("id cannot be empty")
	}
	var entity T
	_, err := r.conn(ctx).NewDelete().Model(&entity).Where("id = ?", id).ForceDelete().Exec(ctx)
	return wrapSQLError(err)
}

func (r *baseRepositoryImpl[T]) DeleteWhere(ctx context.Context, opts *types.FindOptions) (*types.DeleteResult, error) {
	var entity T
	query := applyDeleteOptions(r.conn(ctx).NewDelete().Model(&entity), opts)
	res, err := query.ForceDelete().Exec(ctx)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	affected, _ := res.RowsAffected()
	return &types.DeleteResult{Affected: affected}, nil
}

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	if emptyID(id) {
		return nil, fmt.Errorf("id cannot be empty")
	}
	var entity T
	if err := r.conn(ctx).NewSelect().Model(&entity).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, opts *types.FindOptions) (bool, error) {
	var entity T
	return applyWhere(r.conn(ctx).NewSelect().Model(&entity), opts).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, opts *types.FindOptions) (*T, error) {
	var entity T
	query, err := applySelectOptions(r.conn(ctx).NewSelect().Model(&entity), r.tableInfo(), opts)
	if err != nil {
		return nil, err
	}
	err = query.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) FindOneOrFail(ctx context.Context, opts *types.FindOptions) (*T, error) {
	entity, err := r.FindOne(ctx, opts)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, entityNotFound[T]()
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Find(ctx context.Context, opts *types.FindOptions) ([]*T, error) {
	var entities []*T
	query, err := applySelectOptions(r.conn(ctx).NewSelect().Model(&entities), r.tableInfo(), opts)
	if err != nil {
		return nil, err
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, opts *types.FindOptions) (int, error) {
	var entity T
	return applyWhere(r.conn(ctx).NewSelect().Model(&entity), opts).Count(ctx)
}

func (r *baseRepositoryImpl[T]) FindAndCount(ctx context.Context, opts *types.FindOptions) ([]*T, int, error) {
	entities, err := r.Find(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.Count(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(types.DefaultPage, types.DefaultPageSize)
	}
	var entities []*T
	query := r.conn(ctx).NewSelect().Model(&entities)
	query, err := applyPageRequest(query, r.tableInfo(), pageRequest, r.Dialect().Name())
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	query = query.Offset(pageRequest.GetOffset()).Limit(pageRequest.GetPageSize())
	if orders := pageRequest.GetOrders(); len(orders) > 0 {
		query = query.Order(orders...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return types.NewPagination[T](pageRequest, total, entities), nil
}

func (r *baseRepositoryImpl[T]) SoftDelete(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error) {
	table := r.tableInfo()
	if table.SoftDeleteField == nil {
		return nil, fmt.Errorf("type %q does not support soft delete", utils.ObjectName(new(T)))
	}
	column := table.SoftDeleteField.Name
	now := time.Now().UTC()
	conn := r.conn(ctx)

	var entity T
	query := conn.NewUpdate().Model(&entity).
		Set("? = ?", bun.Ident(column), now).
		Where("? IS NULL", bun.Ident(column))
	res, err := applyUpdateOptions(query, opts).Exec(ctx)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, entityNotFound[T]()
	}

	result := &types.UpdateResult{Affected: affected, Tables: []string{table.Name}}
	if err := r.cascadeSoftDelete(ctx, conn, table.Name, column, now, result); err != nil {
		return nil, err
	}
	return result, nil
}

// cascadeSoftDelete walks registered foreign key constraints breadth-first
// from the root table, trashing live dependent rows whose parent key
// matches a trashed parent row. Dependent tables resolve their soft delete
// column through the model registry; tables without one are not updated
// but still forward the cascade to their own dependents. The first
// constraint reaching a table defines its cascade path.
func (r *baseRepositoryImpl[T]) cascadeSoftDelete(ctx context.Context, conn bun.IDB, rootTable, rootColumn string, now time.Time, result *types.UpdateResult) error {
	// trashedKeys builds, per table, a fresh subquery selecting the key
	// values of rows considered trashed.
	trashedKeys := map[string]func(column string) *bun.SelectQuery{
		strings.ToLower(rootTable): func(column string) *bun.SelectQuery {
			return conn.NewSelect().Table(rootTable).Column(column).
				Where("? IS NOT NULL", bun.Ident(rootColumn))
		},
	}
	visited := map[string]bool{strings.ToLower(rootTable): true}
	queue := []string{rootTable}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		parentKeys := trashedKeys[strings.ToLower(parent)]

		for _, fk := range database.DependentsOf(parent) {
			child := fk.Table
			key := strings.ToLower(child)
			if visited[key] {
				continue
			}
			visited[key] = true

			childColumn, refColumn := fk.Column, fk.ReferenceColumn
			if column, ok := softDeleteColumn(r.root(), child); ok {
				res, err := conn.NewUpdate().Table(child).
					Set("? = ?", bun.Ident(column), now).
					Where("? IS NULL", bun.Ident(column)).
					Where("? IN (?)", bun.Ident(childColumn), parentKeys(refColumn)).
					Exec(ctx)
				if err != nil {
					return wrapSQLError(err)
				}
				affected, _ := res.RowsAffected()
				result.Affected += affected
				result.Tables = append(result.Tables, child)
				trashedKeys[key] = func(keyColumn string) *bun.SelectQuery {
					return conn.NewSelect().Table(child).Column(keyColumn).
						Where("? IS NOT NULL", bun.Ident(column))
				}
			} else {
				trashedKeys[key] = func(keyColumn string) *bun.SelectQuery {
					return conn.NewSelect().Table(child).Column(keyColumn).
						Where("? IN (?)", bun.Ident(childColumn), parentKeys(refColumn))
				}
			}
			queue = append(queue, child)
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Restore(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error) {
	table := r.tableInfo()
	if table.SoftDeleteField == nil {
		return nil, fmt.Errorf("type %q does not support soft delete", utils.ObjectName(new(T)))
	}
	column := table.SoftDeleteField.Name

	var entity T
	query := r.conn(ctx).NewUpdate().Model(&entity).
		Set("? = NULL", bun.Ident(column)).
		Where("? IS NOT NULL", bun.Ident(column))
	res, err := applyUpdateOptions(query, opts).Exec(ctx)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	affected, _ := res.RowsAffected()
	return &types.UpdateResult{Affected: affected, Tables: []string{table.Name}}, nil
}

func (r *baseRepositoryImpl[T]) WithTx(tx bun.Tx) Repository[T] {
	return &baseRepositoryImpl[T]{db: r.db, idb: tx}
}

func (r *baseRepositoryImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	return database.RunInTx(ctx, r.root(), func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

// softDeleteColumn resolves the soft delete column of a table through the
// model registry.
func softDeleteColumn(db *bun.DB, table string) (string, bool) {
	t, ok := database.RegisteredTable(db, table)
	if !ok || t.SoftDeleteField == nil {
		return "", false
	}
	return t.SoftDeleteField.Name, true
}

func entityNotFound[T any]() *types.HTTPError {
	return types.NewNotFound(fmt.Sprintf(
		"could not find any entity of type %q matching the search filter",
		utils.ObjectName(new(T))))
}

func emptyID(id any) bool {
	return id == nil || id == ""
}

// valuesEqual compares a stored field value with an incoming one,
// converting the incoming value to the stored type when possible so pairs
// like int and int64 compare by value.
func valuesEqual(current, next interface{}) bool {
	if reflect.DeepEqual(current, next) {
		return true
	}
	cv := reflect.ValueOf(current)
	nv := reflect.ValueOf(next)
	if !cv.IsValid() || !nv.IsValid() {
		return false
	}
	if nv.Type() != cv.Type() && nv.Type().ConvertibleTo(cv.Type()) {
		return reflect.DeepEqual(current, nv.Convert(cv.Type()).Interface())
	}
	return false
}

// wrapSQLError converts recognizable constraint violations into HTTP
// errors so handlers can return them directly.
func wrapSQLError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.AsHTTPError(err); ok {
		return err
	}
	is, sqlErr := database.IsSqlError(err)
	if !is {
		return err
	}
	switch sqlErr {
	case database.DuplicateKeyErr:
		return types.NewDuplicateValue(err.Error()).WithCause(err)
	case database.NotNullViolationErr, database.ForeignKeyViolationErr,
		database.CheckConstraintViolationErr, database.DataTruncatedErr,
		database.InvalidTypeCastErr:
		return types.NewUnprocessableEntity(err.Error()).WithCause(err)
	}
	return err
}
