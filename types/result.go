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

// UpdateResult reports the outcome of an UPDATE. For cascading soft
// deletes, Tables lists every table touched in traversal order, the
// parent table first.
type UpdateResult struct {
	Affected int64    `json:"affected"`
	Tables   []string `json:"tables,omitempty"`
}

// DeleteResult reports the outcome of a DELETE.
type DeleteResult struct {
	Affected int64 `json:"affected"`
}
