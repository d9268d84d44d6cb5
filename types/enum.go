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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// EnumOf returns the first candidate whose Number matches, or fallback.
func EnumOf[E BaseEnum](number int, candidates []E, fallback E) E {
	for _, c := range candidates {
		if c.Number() == number {
			return c
		}
	}
	return fallback
}

// EnumOfName returns the first candidate whose Name matches, or fallback.
func EnumOfName[E BaseEnum](name string, candidates []E, fallback E) E {
	for _, c := range candidates {
		if c.Name() == name {
			return c
		}
	}
	return fallback
}

// EnumNames lists the Name of every candidate, in order.
func EnumNames[E BaseEnum](candidates []E) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name())
	}
	return names
}
