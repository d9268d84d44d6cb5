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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSQLFile(t *testing.T, root string, parts ...string) {
	t.Helper()
	content := parts[len(parts)-1]
	rel := parts[:len(parts)-1]
	path := filepath.Join(append([]string{root}, rel...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGetSQLFilesOrdering(t *testing.T) {
	root := t.TempDir()
	writeSQLFile(t, root, "common", "002_second.sql", "SELECT 2;")
	writeSQLFile(t, root, "common", "001_first.sql", "SELECT 1;")
	writeSQLFile(t, root, "common", "010_tenth.sql", "SELECT 10;")
	writeSQLFile(t, root, "common", "seed.sql", "SELECT 999;")
	writeSQLFile(t, root, "common", "notes.txt", "not sql")
	writeSQLFile(t, root, "environments", "test", "001_env.sql", "SELECT 'env';")
	writeSQLFile(t, root, "environments", "other", "001_other.sql", "SELECT 'other';")

	manager := NewSQLInitManager(nil, "test")
	manager.SetSQLRootPath(root)

	files, err := manager.GetSQLFiles()
	require.NoError(t, err)
	require.Len(t, files, 5)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"001_first.sql",
		"002_second.sql",
		"010_tenth.sql",
		"seed.sql", // no numeric prefix sorts last within the directory
		"001_env.sql",
	}, names)

	assert.Equal(t, "common", files[0].Environment)
	assert.Equal(t, "test", files[4].Environment)
}

func TestGetSQLFilesMissingRoot(t *testing.T) {
	manager := NewSQLInitManager(nil, "test")
	manager.SetSQLRootPath(filepath.Join(t.TempDir(), "does-not-exist"))

	files, err := manager.GetSQLFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestParseFileOrder(t *testing.T) {
	manager := NewSQLInitManager(nil, "test")

	assert.Equal(t, 1, manager.parseFileOrder("001_users.sql"))
	assert.Equal(t, 10, manager.parseFileOrder("010_roles.sql"))
	assert.Equal(t, 12, manager.parseFileOrder("12_perms.sql"))
	assert.Equal(t, 999, manager.parseFileOrder("seed.sql"))
}

func TestSplitSQLStatements(t *testing.T) {
	manager := NewSQLInitManager(nil, "test")

	content := `-- leading comment
INSERT INTO items (label)
VALUES ('a');

INSERT INTO items (label) VALUES ('b');
-- trailing comment
SELECT 1`

	statements := manager.splitSQLStatements(content)
	require.Len(t, statements, 3)
	assert.Equal(t, "INSERT INTO items (label) VALUES ('a');", statements[0])
	assert.Equal(t, "INSERT INTO items (label) VALUES ('b');", statements[1])
	assert.Equal(t, "SELECT 1", statements[2])
}

func TestReplaceEnvVariables(t *testing.T) {
	t.Setenv("GEARTEST_SQL_OWNER", "ops")

	manager := NewSQLInitManager(nil, "staging")
	out, err := manager.replaceEnvVariables(
		"INSERT INTO audit (env, owner) VALUES ('{{.ENVIRONMENT}}', '{{.GEARTEST_SQL_OWNER}}');")
	require.NoError(t, err)
	assert.Contains(t, out, "'staging'")
	assert.Contains(t, out, "'ops'")

	_, err = manager.replaceEnvVariables("SELECT '{{.broken'")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestExecuteInitialization(t *testing.T) {
	db := newTestDB(t, "sql_init_exec")
	root := t.TempDir()

	writeSQLFile(t, root, "common", "001_schema.sql",
		"CREATE TABLE sql_init_items (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT, env TEXT);")
	writeSQLFile(t, root, "common", "002_seed.sql", `-- seed rows
INSERT INTO sql_init_items (label, env) VALUES ('one', 'common');
INSERT INTO sql_init_items (label, env) VALUES ('two', 'common');`)
	writeSQLFile(t, root, "environments", "test", "001_env.sql",
		"INSERT INTO sql_init_items (label, env) VALUES ('three', '{{.ENVIRONMENT}}');")

	manager := NewSQLInitManager(db, "test")
	manager.SetSQLRootPath(root)
	require.NoError(t, manager.ExecuteInitialization())

	ctx := context.Background()
	count, err := db.NewSelect().Table("sql_init_items").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var env string
	require.NoError(t, db.NewSelect().
		Table("sql_init_items").
		Column("env").
		Where("label = ?", "three").
		Scan(ctx, &env))
	assert.Equal(t, "test", env)
}

func TestExecuteInitializationStopsOnError(t *testing.T) {
	db := newTestDB(t, "sql_init_fail")
	root := t.TempDir()
	writeSQLFile(t, root, "common", "001_bad.sql", "THIS IS NOT SQL;")

	manager := NewSQLInitManager(db, "test")
	manager.SetSQLRootPath(root)

	err := manager.ExecuteInitialization()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQL file execution failed")
}

func TestExecuteInitializationNoFiles(t *testing.T) {
	db := newTestDB(t, "sql_init_empty")

	manager := NewSQLInitManager(db, "test")
	manager.SetSQLRootPath(t.TempDir())

	require.NoError(t, manager.ExecuteInitialization())
}
