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

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestEntityBeforeAppendModelInsert(t *testing.T) {
	entity := &Entity{}
	require.NoError(t, entity.BeforeAppendModel(context.Background(), &bun.InsertQuery{}))

	_, err := uuid.Parse(entity.ID)
	assert.NoError(t, err, "insert should assign a uuid id")
	assert.False(t, entity.CreatedAt.IsZero())
	assert.Equal(t, entity.CreatedAt, entity.UpdatedAt)
	assert.Equal(t, time.UTC, entity.CreatedAt.Location())
}

func TestEntityBeforeAppendModelKeepsAssignedID(t *testing.T) {
	entity := &Entity{ID: "fixed-id"}
	require.NoError(t, entity.BeforeAppendModel(context.Background(), &bun.InsertQuery{}))
	assert.Equal(t, "fixed-id", entity.ID)
}

func TestEntityBeforeAppendModelUpdate(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entity := &Entity{ID: "fixed-id", CreatedAt: created, UpdatedAt: created}
	require.NoError(t, entity.BeforeAppendModel(context.Background(), &bun.UpdateQuery{}))

	assert.Equal(t, created, entity.CreatedAt, "update must not touch created_at")
	assert.True(t, entity.UpdatedAt.After(created))
}

func TestSoftDeleteTrashed(t *testing.T) {
	var row SoftDelete
	assert.False(t, row.Trashed())

	row.DeletedAt = time.Now().UTC()
	assert.True(t, row.Trashed())
}
