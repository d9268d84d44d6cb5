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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOptionsBuilders(t *testing.T) {
	opts := NewFindOptions().
		WithWhere("name = ?", "li").
		WithWhere("age > ?", 18).
		WithColumns("id", "name").
		WithOrder("name ASC").
		WithRelations("Author").
		WithLimit(5).
		WithOffset(10).
		IncludeDeleted()

	require.Len(t, opts.Where, 2)
	assert.Equal(t, "name = ?", opts.Where[0].Schema)
	assert.Equal(t, []interface{}{"li"}, opts.Where[0].Args)
	assert.Equal(t, []string{"id", "name"}, opts.Columns)
	assert.Equal(t, []string{"name ASC"}, opts.Order)
	assert.Equal(t, []string{"Author"}, opts.Relations)
	assert.Equal(t, 5, opts.Limit)
	assert.Equal(t, 10, opts.Offset)
	assert.True(t, opts.WithDeleted)
}

func TestFindOptionsWithFilter(t *testing.T) {
	opts := NewFindOptions().WithFilter(nil)
	assert.Empty(t, opts.Where)

	filter := NewQueryFilter("status = ?", "active")
	opts.WithFilter(filter)
	require.Len(t, opts.Where, 1)
	assert.Same(t, filter, opts.Where[0])
}

func TestFindOptionsMerge(t *testing.T) {
	left := NewFindOptions().WithWhere("a = ?", 1).WithColumns("a").WithLimit(10)
	right := NewFindOptions().WithWhere("b = ?", 2).WithOrder("b DESC").WithLimit(20).IncludeDeleted()

	merged := left.Merge(right)
	require.Len(t, merged.Where, 2)
	assert.Equal(t, "a = ?", merged.Where[0].Schema)
	assert.Equal(t, "b = ?", merged.Where[1].Schema)
	assert.Equal(t, []string{"a"}, merged.Columns)
	assert.Equal(t, []string{"b DESC"}, merged.Order)
	assert.Equal(t, 20, merged.Limit, "other's limit wins when set")
	assert.True(t, merged.WithDeleted)

	// the inputs stay untouched
	assert.Len(t, left.Where, 1)
	assert.Len(t, right.Where, 1)
}

func TestFindOptionsMergeNil(t *testing.T) {
	opts := NewFindOptions().WithLimit(3)

	assert.Same(t, opts, opts.Merge(nil))
	assert.Same(t, opts, (*FindOptions)(nil).Merge(opts))
	assert.Nil(t, (*FindOptions)(nil).Merge(nil))
}
