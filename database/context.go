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

package database

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type idbContextKey struct{}

// NewContext returns a context carrying the given database handle. Code that
// resolves its handle through FromContext will use it instead of the global
// connection, which is how repositories join an in-flight transaction.
func NewContext(ctx context.Context, idb bun.IDB) context.Context {
	return context.WithValue(ctx, idbContextKey{}, idb)
}

// FromContext extracts the database handle carried by the context, if any.
func FromContext(ctx context.Context) (bun.IDB, bool) {
	idb, ok := ctx.Value(idbContextKey{}).(bun.IDB)
	return idb, ok
}

// ContextDB resolves the database handle for the context, falling back to
// the provided handle and finally to the global connection.
func ContextDB(ctx context.Context, fallback bun.IDB) bun.IDB {
	if idb, ok := FromContext(ctx); ok && idb != nil {
		return idb
	}
	if fallback != nil {
		return fallback
	}
	if db := GetDB(); db != nil {
		return db
	}
	return nil
}

// RunInTx executes fn inside a transaction on db. The transaction handle is
// injected into the context passed to fn, so repository calls made with that
// context share the transaction. A nil db falls back to the global
// connection.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil {
		db = GetDB()
	}
	if db == nil {
		return sql.ErrConnDone
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(NewContext(ctx, tx), tx)
	})
}
