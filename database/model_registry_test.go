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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type registryAuthor struct {
	bun.BaseModel `bun:"table:registry_authors,alias:ra"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type registryBook struct {
	bun.BaseModel `bun:"table:registry_books,alias:rb"`

	ID       string `bun:"id,pk"`
	AuthorID string `bun:"author_id"`
}

func TestRegisterModelOrdering(t *testing.T) {
	resetRegistries(t)

	RegisterModel((*registryBook)(nil), 20)
	RegisterModel((*registryAuthor)(nil), 10)

	instances := RegisteredModelInstances()
	require.Len(t, instances, 2)
	assert.IsType(t, (*registryAuthor)(nil), instances[0], "lower priority registers first")
	assert.IsType(t, (*registryBook)(nil), instances[1])
}

func TestModelTable(t *testing.T) {
	db := newTestDB(t, "model_registry_table")

	table := ModelTable(db, (*registryAuthor)(nil))
	require.NotNil(t, table)
	assert.Equal(t, "registry_authors", table.Name)
	require.NotNil(t, table.SoftDeleteField)
	assert.Equal(t, "deleted_at", table.SoftDeleteField.Name)

	assert.Same(t, table, ModelTable(db, registryAuthor{}), "pointer and value resolve the same table")
	assert.Nil(t, ModelTable(db, "not a struct"))
	assert.Nil(t, ModelTable(db, nil))
}

func TestRegisteredTable(t *testing.T) {
	resetRegistries(t)
	db := newTestDB(t, "model_registry_lookup")

	RegisterModel((*registryAuthor)(nil), 1)
	RegisterModel((*registryBook)(nil), 2)

	table, ok := RegisteredTable(db, "registry_books")
	require.True(t, ok)
	assert.Equal(t, "registry_books", table.Name)

	_, ok = RegisteredTable(db, "unknown_table")
	assert.False(t, ok)
}

func TestTableHasSoftDelete(t *testing.T) {
	resetRegistries(t)
	db := newTestDB(t, "model_registry_softdelete")

	RegisterModel((*registryAuthor)(nil), 1)
	RegisterModel((*registryBook)(nil), 2)

	assert.True(t, TableHasSoftDelete(db, "registry_authors"))
	assert.False(t, TableHasSoftDelete(db, "registry_books"))
	assert.False(t, TableHasSoftDelete(db, "unknown_table"))
}
