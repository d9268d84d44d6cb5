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
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entity is the embeddable base for persisted models: a uuid primary key
// and create/update timestamps maintained by the Bun append hook. Models
// declare their own bun.BaseModel to control table naming:
//
//	type User struct {
//		bun.BaseModel `bun:"table:users,alias:u"`
//		types.Entity
//		Name string `bun:"name,notnull"`
//	}
type Entity struct {
	ID        string    `bun:"id,pk" json:"id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Entity)(nil)

// BeforeAppendModel fills the id and timestamps on insert and refreshes
// UpdatedAt on update. On insert both timestamps carry the same instant.
func (e *Entity) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		e.CreatedAt = now
		e.UpdatedAt = now
	case *bun.UpdateQuery:
		e.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// SoftDelete marks rows as trashed instead of removing them. Bun excludes
// trashed rows from selects and rewrites DELETE into an UPDATE of the
// deleted_at column.
type SoftDelete struct {
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Trashed reports whether the row carries a soft delete mark.
func (s *SoftDelete) Trashed() bool {
	return !s.DeletedAt.IsZero()
}
