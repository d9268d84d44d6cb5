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

package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/gear/database"
)

func newSessionDB(t *testing.T, name string) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxIdleConns(100)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newNotesDB(t *testing.T, name string) *bun.DB {
	t.Helper()

	db := newSessionDB(t, name)
	_, err := db.ExecContext(context.Background(),
		"CREATE TABLE mw_notes (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT)")
	require.NoError(t, err)
	return db
}

func countNotes(t *testing.T, db *bun.DB) int {
	t.Helper()

	count, err := db.NewSelect().Table("mw_notes").Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestDBSession(t *testing.T) {
	db := newSessionDB(t, "mw_session")

	var got bun.IDB
	handler := DBSession(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idb, ok := database.FromContext(r.Context())
		require.True(t, ok)
		got = idb
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Same(t, db, got)
}

func TestDBSessionWithoutDB(t *testing.T) {
	called := false
	handler := DBSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := database.FromContext(r.Context())
		assert.False(t, ok)
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}

func TestDBTransactionCommit(t *testing.T) {
	db := newNotesDB(t, "mw_tx_commit")

	handler := DBTransaction(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idb, ok := database.FromContext(r.Context())
		require.True(t, ok)
		_, err := idb.ExecContext(r.Context(), "INSERT INTO mw_notes (body) VALUES (?)", "committed")
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, countNotes(t, db))
}

func TestDBTransactionRollbackOnServerError(t *testing.T) {
	db := newNotesDB(t, "mw_tx_rollback")

	handler := DBTransaction(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idb, ok := database.FromContext(r.Context())
		require.True(t, ok)
		_, err := idb.ExecContext(r.Context(), "INSERT INTO mw_notes (body) VALUES (?)", "doomed")
		require.NoError(t, err)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, countNotes(t, db))
}

func TestDBTransactionRollbackOnPanic(t *testing.T) {
	db := newNotesDB(t, "mw_tx_panic")

	handler := Recoverer(DBTransaction(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idb, ok := database.FromContext(r.Context())
		require.True(t, ok)
		_, err := idb.ExecContext(r.Context(), "INSERT INTO mw_notes (body) VALUES (?)", "doomed")
		require.NoError(t, err)
		panic("mid-request failure")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, countNotes(t, db))

	response := decodeEnvelope(t, rec)
	require.Len(t, response.Detail, 1)
	assert.Equal(t, "internal server error", response.Detail[0].Msg)
}

func TestDBTransactionWithoutDB(t *testing.T) {
	called := false
	handler := DBTransaction(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := database.FromContext(r.Context())
		assert.False(t, ok)
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}
