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
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/gear/database"
	"github.com/tomoncle/gear/types"
)

type gearTicket struct {
	bun.BaseModel `bun:"table:gear_tickets,alias:gt"`
	types.Entity
	types.SoftDelete

	Subject  string `bun:"subject,notnull"`
	Status   string `bun:"status"`
	Priority int64  `bun:"priority"`
}

func setupServiceDB(t *testing.T, name string) *bun.DB {
	t.Helper()

	database.ResetRegisteredModels()
	database.ResetRegisteredForeignKeys()
	t.Cleanup(func() {
		database.ResetRegisteredModels()
		database.ResetRegisteredForeignKeys()
	})
	database.RegisterModel((*gearTicket)(nil), 1)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxIdleConns(100)
	sqldb.SetConnMaxLifetime(0)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range database.RegisteredModelInstances() {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func seedTicket(t *testing.T, svc Service[gearTicket], subject, status string, priority int64) *gearTicket {
	t.Helper()
	ticket := &gearTicket{Subject: subject, Status: status, Priority: priority}
	require.NoError(t, svc.Save(context.Background(), ticket))
	return ticket
}

func TestServiceSaveAndGet(t *testing.T) {
	db := setupServiceDB(t, "svc_save")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	ticket := seedTicket(t, svc, "printer on fire", "open", 1)
	assert.NotEmpty(t, ticket.ID)
	assert.False(t, ticket.CreatedAt.IsZero())

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "printer on fire", got.Subject)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestServiceListAndQuery(t *testing.T) {
	db := setupServiceDB(t, "svc_list")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	seedTicket(t, svc, "alpha", "open", 1)
	seedTicket(t, svc, "beta", "open", 2)
	seedTicket(t, svc, "gamma", "closed", 3)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	open, err := svc.List(ctx, types.NewQueryFilter("status = ?", "open"))
	require.NoError(t, err)
	assert.Len(t, open, 2)

	named, err := svc.Query(ctx, "subject = ?", "alpha")
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "alpha", named[0].Subject)

	count, err := svc.Count(ctx, types.NewFindOptions().WithWhere("status = ?", "open"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	exists, err := svc.Exists(ctx, types.NewFindOptions().WithWhere("subject = ?", "gamma"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServiceFindOneOrFail(t *testing.T) {
	db := setupServiceDB(t, "svc_find_one")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	seedTicket(t, svc, "alpha", "open", 1)

	found, err := svc.FindOne(ctx, types.NewFindOptions().WithWhere("subject = ?", "alpha"))
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := svc.FindOne(ctx, types.NewFindOptions().WithWhere("subject = ?", "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.FindOneOrFail(ctx, types.NewFindOptions().WithWhere("subject = ?", "nope"))
	httpErr, ok := types.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestServicePage(t *testing.T) {
	db := setupServiceDB(t, "svc_page")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		seedTicket(t, svc, fmt.Sprintf("ticket %d", i), "open", i)
	}

	page, err := svc.Page(ctx, types.NewDefaultPageRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Len(t, page.Items, 2)
}

func TestServiceSaveOrUpdate(t *testing.T) {
	db := setupServiceDB(t, "svc_upsert")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	ticket := seedTicket(t, svc, "alpha", "open", 1)

	ticket.Status = "closed"
	fresh := &gearTicket{Subject: "delta", Status: "open", Priority: 4}
	require.NoError(t, svc.SaveOrUpdate(ctx, []string{"id"}, []string{"status"}, ticket, fresh))

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServiceUpdateColumns(t *testing.T) {
	db := setupServiceDB(t, "svc_update_columns")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	ticket := seedTicket(t, svc, "alpha", "open", 1)

	result, err := svc.UpdateColumns(ctx, ticket.ID, map[string]interface{}{"status": "closed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)
}

func TestServiceDelete(t *testing.T) {
	db := setupServiceDB(t, "svc_delete")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	ticket := seedTicket(t, svc, "alpha", "open", 1)
	require.NoError(t, svc.Delete(ctx, ticket.ID))

	_, err := svc.Get(ctx, ticket.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	seedTicket(t, svc, "beta", "open", 2)
	seedTicket(t, svc, "gamma", "closed", 3)
	result, err := svc.DeleteWhere(ctx, types.NewFindOptions().WithWhere("status = ?", "open"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)
}

func TestServiceSoftDeleteAndRestore(t *testing.T) {
	db := setupServiceDB(t, "svc_soft_delete")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	ticket := seedTicket(t, svc, "alpha", "open", 1)

	result, err := svc.SoftDelete(ctx, types.NewFindOptions().WithWhere("id = ?", ticket.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)
	assert.Equal(t, []string{"gear_tickets"}, result.Tables)

	_, err = svc.Get(ctx, ticket.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	restored, err := svc.Restore(ctx, types.NewFindOptions().WithWhere("id = ?", ticket.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored.Affected)

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Subject)
}

func TestServiceRunInTxRollback(t *testing.T) {
	db := setupServiceDB(t, "svc_tx_rollback")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := svc.RunInTx(ctx, func(ctx context.Context, svc Service[gearTicket]) error {
		if err := svc.Save(ctx, &gearTicket{Subject: "doomed", Status: "open"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestServiceWithTx(t *testing.T) {
	db := setupServiceDB(t, "svc_with_tx")
	svc := NewServiceWithDB[gearTicket](db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	bound := svc.WithTx(tx)
	require.NoError(t, bound.Save(ctx, &gearTicket{Subject: "staged", Status: "open"}))
	require.NoError(t, tx.Rollback())

	count, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestServiceBuilders(t *testing.T) {
	db := setupServiceDB(t, "svc_builders")
	svc := NewServiceWithDB[gearTicket](db)

	assert.NotNil(t, svc.Repo())
	assert.NotNil(t, svc.SelectBuilder())
	assert.NotNil(t, svc.InsertBuilder())
	assert.NotNil(t, svc.UpdateBuilder())
	assert.NotNil(t, svc.DeleteBuilder())
}

func TestServiceResolvesProcessWideDB(t *testing.T) {
	database.ResetRegisteredModels()
	database.ResetRegisteredForeignKeys()
	t.Cleanup(func() {
		database.ResetRegisteredModels()
		database.ResetRegisteredForeignKeys()
	})
	database.RegisterModel((*gearTicket)(nil), 1)

	svc := NewService[gearTicket]()

	require.NoError(t, Setup(&database.Config{
		ConnectionConfig: database.ConnectionConfig{Type: "sqlite", Path: ":memory:"},
	}))
	t.Cleanup(func() { _ = Shutdown() })

	ctx := context.Background()
	_, err := DB().NewCreateTable().Model((*gearTicket)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	ticket := &gearTicket{Subject: "global", Status: "open"}
	require.NoError(t, svc.Save(ctx, ticket))

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "global", got.Subject)
}
