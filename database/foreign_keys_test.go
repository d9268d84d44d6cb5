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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConstraintName(t *testing.T) {
	fk := ForeignKeyConstraint{Table: "books", Column: "author_id"}
	assert.Equal(t, "fk_books_author_id", fk.GenerateConstraintName())

	fk.ConstraintName = "fk_custom"
	assert.Equal(t, "fk_custom", fk.GenerateConstraintName())
}

func TestGenerateSQL(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table:           "books",
		Column:          "author_id",
		ReferenceTable:  "authors",
		ReferenceColumn: "id",
	}
	assert.Equal(t,
		"ALTER TABLE books ADD CONSTRAINT fk_books_author_id FOREIGN KEY (author_id) REFERENCES authors(id)",
		fk.GenerateSQL())

	fk.OnDelete = "CASCADE"
	fk.OnUpdate = "RESTRICT"
	assert.Equal(t,
		"ALTER TABLE books ADD CONSTRAINT fk_books_author_id FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE ON UPDATE RESTRICT",
		fk.GenerateSQL())
}

func TestForeignKeyRegistry(t *testing.T) {
	resetRegistries(t)

	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "book_files", Column: "book_id", ReferenceTable: "books", ReferenceColumn: "id"},
	)
	// same table and constraint name, must be ignored
	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id", OnDelete: "CASCADE"},
	)

	constraints := RegisteredForeignKeys()
	require.Len(t, constraints, 2)
	assert.Empty(t, constraints[0].OnDelete, "duplicate registration must not replace the original")
}

func TestDependentsOf(t *testing.T) {
	resetRegistries(t)

	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "profiles", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "book_files", Column: "book_id", ReferenceTable: "books", ReferenceColumn: "id"},
	)

	dependents := DependentsOf("authors")
	require.Len(t, dependents, 2)
	tables := []string{dependents[0].Table, dependents[1].Table}
	assert.Contains(t, tables, "books")
	assert.Contains(t, tables, "profiles")

	assert.Len(t, DependentsOf("Authors"), 2, "table matching ignores case")
	assert.Empty(t, DependentsOf("orphans"))
}

func TestValidateConstraints(t *testing.T) {
	resetRegistries(t)

	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id", OnDelete: "CASCADE"},
	)
	manager := NewForeignKeyManager(GetLogger())
	assert.Empty(t, manager.ValidateConstraints())

	resetRegistries(t)
	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id", OnDelete: "EXPLODE"},
	)
	manager = NewForeignKeyManager(GetLogger())
	errs := manager.ValidateConstraints()
	assert.Len(t, errs, 2)
}

func TestGetConstraintsByTable(t *testing.T) {
	resetRegistries(t)

	RegisterForeignKeys(
		ForeignKeyConstraint{Table: "books", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "books", Column: "series_id", ReferenceTable: "series", ReferenceColumn: "id"},
		ForeignKeyConstraint{Table: "profiles", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"},
	)

	manager := NewForeignKeyManager(GetLogger())
	assert.Len(t, manager.GetConstraintsByTable("books"), 2)
	assert.Len(t, manager.GetConstraintsByTable("profiles"), 1)
	assert.Empty(t, manager.GetConstraintsByTable("missing"))
}
