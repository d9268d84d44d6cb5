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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type contextNote struct {
	bun.BaseModel `bun:"table:context_notes,alias:cn"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Body string `bun:"body,notnull"`
}

func TestContextRoundTrip(t *testing.T) {
	db := newTestDB(t, "context_roundtrip")

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), db)
	idb, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, bun.IDB(db), idb)
}

func TestContextDBFallback(t *testing.T) {
	db := newTestDB(t, "context_fallback")

	assert.Equal(t, bun.IDB(db), ContextDB(context.Background(), db))

	other := newTestDB(t, "context_fallback_other")
	ctx := NewContext(context.Background(), other)
	assert.Equal(t, bun.IDB(other), ContextDB(ctx, db), "context handle wins over fallback")
}

func TestRunInTxCommit(t *testing.T) {
	db := newTestDB(t, "context_tx_commit")
	ctx := context.Background()
	_, err := db.NewCreateTable().Model((*contextNote)(nil)).Exec(ctx)
	require.NoError(t, err)

	err = RunInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		// the injected context carries the transaction
		idb, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, bun.IDB(tx), idb)

		_, err := tx.NewInsert().Model(&contextNote{Body: "committed"}).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*contextNote)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunInTxRollback(t *testing.T) {
	db := newTestDB(t, "context_tx_rollback")
	ctx := context.Background()
	_, err := db.NewCreateTable().Model((*contextNote)(nil)).Exec(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = RunInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&contextNote{Body: "discarded"}).Exec(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := db.NewSelect().Model((*contextNote)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
