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

package gear

import (
	"context"
	"sync"

	"github.com/tomoncle/gear/database"
	"github.com/tomoncle/gear/repository"
	"github.com/tomoncle/gear/types"

	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query executes a raw where clause and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Find returns entities matching the options.
	Find(ctx context.Context, opts *types.FindOptions) ([]*T, error)

	// FindOne returns the first matching entity, or nil when nothing
	// matches.
	FindOne(ctx context.Context, opts *types.FindOptions) (*T, error)

	// FindOneOrFail returns the first matching entity, or a 404 HTTPError
	// when nothing matches.
	FindOneOrFail(ctx context.Context, opts *types.FindOptions) (*T, error)

	// Count returns the number of matching rows.
	Count(ctx context.Context, opts *types.FindOptions) (int, error)

	// Exists reports whether any row matches the options.
	Exists(ctx context.Context, opts *types.FindOptions) (bool, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveAndReturn inserts a single entity and returns it with
	// database-populated columns filled in.
	SaveAndReturn(ctx context.Context, model *T) (*T, error)

	// SaveOrUpdate upserts entities based on conflict and update columns.
	SaveOrUpdate(ctx context.Context, conflictColumns []string, updateColumns []string, model ...*T) error

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// UpdateColumns writes only the columns that differ from the stored
	// row.
	UpdateColumns(ctx context.Context, id any, columns map[string]interface{}) (*types.UpdateResult, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// DeleteWhere removes all entities matching the options.
	DeleteWhere(ctx context.Context, opts *types.FindOptions) (*types.DeleteResult, error)

	// SoftDelete marks matching entities trashed and cascades over
	// registered foreign keys.
	SoftDelete(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error)

	// Restore clears the soft delete mark on matching trashed entities.
	Restore(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error)

	// WithTx returns a service bound to the transaction.
	WithTx(tx bun.Tx) Service[T]

	// RunInTx runs fn inside a transaction. The service passed to fn and
	// the derived context both carry the transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, svc Service[T]) error) error

	// Repo returns the underlying repository.
	Repo() repository.Repository[T]

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery

	// InsertBuilder returns a Bun insert query builder for the entity.
	InsertBuilder() *bun.InsertQuery

	// UpdateBuilder returns a Bun update query builder for the entity.
	UpdateBuilder() *bun.UpdateQuery

	// DeleteBuilder returns a Bun delete query builder for the entity.
	DeleteBuilder() *bun.DeleteQuery
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
	once sync.Once
}

// NewService returns a default Service implementation using the generic
// repository backed by the process-wide database connection. The connection
// is resolved lazily on first use, so services can be constructed before
// database.InitDB runs.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

// NewServiceWithDB returns a Service bound to an explicit Bun DB.
func NewServiceWithDB[T any](db *bun.DB) Service[T] {
	return &baseServiceImpl[T]{repo: repository.NewRepository[T](db)}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() {
		if s.repo == nil {
			s.repo = repository.NewRepository[T](database.GetDB())
		}
	})
	return s.repo
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.baseRepo().Get(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.baseRepo().Find(ctx, nil)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	opts := types.NewFindOptions().WithFilter(filter)
	return s.baseRepo().Find(ctx, opts)
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	opts := types.NewFindOptions().WithWhere(query, args...)
	return s.baseRepo().Find(ctx, opts)
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, opts *types.FindOptions) ([]*T, error) {
	return s.baseRepo().Find(ctx, opts)
}

func (s *baseServiceImpl[T]) FindOne(ctx context.Context, opts *types.FindOptions) (*T, error) {
	return s.baseRepo().FindOne(ctx, opts)
}

func (s *baseServiceImpl[T]) FindOneOrFail(ctx context.Context, opts *types.FindOptions) (*T, error) {
	return s.baseRepo().FindOneOrFail(ctx, opts)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, opts *types.FindOptions) (int, error) {
	return s.baseRepo().Count(ctx, opts)
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, opts *types.FindOptions) (bool, error) {
	return s.baseRepo().Exists(ctx, opts)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return s.baseRepo().Page(ctx, page)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return s.baseRepo().Insert(ctx, model...)
}

func (s *baseServiceImpl[T]) SaveAndReturn(ctx context.Context, model *T) (*T, error) {
	return s.baseRepo().InsertAndReturn(ctx, model)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, conflictColumns []string, updateColumns []string, model ...*T) error {
	return s.baseRepo().Upsert(ctx, conflictColumns, updateColumns, model...)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return s.baseRepo().Update(ctx, model)
}

func (s *baseServiceImpl[T]) UpdateColumns(ctx context.Context, id any, columns map[string]interface{}) (*types.UpdateResult, error) {
	return s.baseRepo().UpdateColumns(ctx, id, columns)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.baseRepo().Delete(ctx, id)
}

func (s *baseServiceImpl[T]) DeleteWhere(ctx context.Context, opts *types.FindOptions) (*types.DeleteResult, error) {
	return s.baseRepo().DeleteWhere(ctx, opts)
}

func (s *baseServiceImpl[T]) SoftDelete(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error) {
	return s.baseRepo().SoftDelete(ctx, opts)
}

func (s *baseServiceImpl[T]) Restore(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error) {
	return s.baseRepo().Restore(ctx, opts)
}

func (s *baseServiceImpl[T]) WithTx(tx bun.Tx) Service[T] {
	return &baseServiceImpl[T]{repo: s.baseRepo().WithTx(tx)}
}

func (s *baseServiceImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, svc Service[T]) error) error {
	return s.baseRepo().RunInTx(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		return fn(ctx, &baseServiceImpl[T]{repo: repo})
	})
}

func (s *baseServiceImpl[T]) Repo() repository.Repository[T] {
	return s.baseRepo()
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.baseRepo().NewSelect()
}

func (s *baseServiceImpl[T]) InsertBuilder() *bun.InsertQuery {
	return s.baseRepo().NewInsert()
}

func (s *baseServiceImpl[T]) UpdateBuilder() *bun.UpdateQuery {
	return s.baseRepo().NewUpdate()
}

func (s *baseServiceImpl[T]) DeleteBuilder() *bun.DeleteQuery {
	return s.baseRepo().NewDelete()
}
