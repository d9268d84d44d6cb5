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

	"github.com/tomoncle/gear/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines write and lookup operations for a generic entity
// type.
type CrudRepository[T any] interface {
	// Insert persists one or more entities. An empty argument list is a
	// no-op.
	Insert(ctx context.Context, entities ...*T) error

	// InsertAndReturn persists a single entity and returns it with
	// database-populated columns filled in.
	InsertAndReturn(ctx context.Context, entity *T) (*T, error)

	// Update writes all columns of the entity by primary key.
	Update(ctx context.Context, entity *T) error

	// UpdateColumns writes only the columns whose value differs from the
	// stored row. When nothing differs no UPDATE is issued and the result
	// reports zero affected rows.
	UpdateColumns(ctx context.Context, id any, columns map[string]interface{}) (*types.UpdateResult, error)

	// Upsert inserts entities, updating updateColumns when a row with the
	// same conflict columns already exists.
	Upsert(ctx context.Context, conflictColumns []string, updateColumns []string, entities ...*T) error

	// Delete removes the row permanently, even when the model is
	// soft-deletable.
	Delete(ctx context.Context, id any) error

	// DeleteWhere removes all rows matching the options permanently.
	DeleteWhere(ctx context.Context, opts *types.FindOptions) (*types.DeleteResult, error)

	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// Exists reports whether any row matches the options.
	Exists(ctx context.Context, opts *types.FindOptions) (bool, error)
}

// FindRepository defines option-driven queries.
type FindRepository[T any] interface {
	// FindOne returns the first matching entity, or nil when nothing
	// matches.
	FindOne(ctx context.Context, opts *types.FindOptions) (*T, error)

	// FindOneOrFail returns the first matching entity, or a 404 HTTPError
	// when nothing matches.
	FindOneOrFail(ctx context.Context, opts *types.FindOptions) (*T, error)

	// Find returns all matching entities.
	Find(ctx context.Context, opts *types.FindOptions) ([]*T, error)

	// Count returns the number of matching rows, ignoring limit, offset,
	// and order.
	Count(ctx context.Context, opts *types.FindOptions) (int, error)

	// FindAndCount returns matching entities plus the total count; the
	// count honors filters but not pagination.
	FindAndCount(ctx context.Context, opts *types.FindOptions) ([]*T, int, error)
}

// PageRepository defines pagination functionality for listing entities.
type PageRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// SoftDeleteRepository defines trash and restore operations for models
// carrying a soft delete column.
type SoftDeleteRepository[T any] interface {
	// SoftDelete marks matching rows trashed and cascades over registered
	// foreign key constraints, trashing live dependent rows whose parent
	// is trashed. Dependent tables without a soft delete column pass the
	// cascade through to their own dependents.
	SoftDelete(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error)

	// Restore clears the soft delete mark on matching trashed rows. It
	// does not cascade.
	Restore(ctx context.Context, opts *types.FindOptions) (*types.UpdateResult, error)
}

// TxRepository defines transactional execution.
type TxRepository[T any] interface {
	// WithTx returns a repository bound to the transaction.
	WithTx(tx bun.Tx) Repository[T]

	// RunInTx runs fn inside a transaction. The repository passed to fn
	// and the derived context both carry the transaction, so nested
	// repository calls share it.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error
}

// Repository combines CRUD, find, pagination, soft delete, and
// transactional operations and exposes Bun query builders for advanced use
// cases.
type Repository[T any] interface {
	CrudRepository[T]
	FindRepository[T]
	PageRepository[T]
	SoftDeleteRepository[T]
	TxRepository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
