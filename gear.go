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

// Package gear is a utility library for building small database-backed
// HTTP services: generic Bun repositories and services, pagination and
// query parsing, a standard error envelope with chi middleware, layered
// TOML settings, structured logging, and an optional Redis cache.
package gear

import (
	"github.com/tomoncle/gear/database"
	"github.com/tomoncle/gear/middleware"
	"github.com/tomoncle/gear/utils"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// Version is the library version.
const Version = "0.1.0"

// Setup initializes the process-wide database connection, running
// migrations and seeds according to the config.
func Setup(config *database.Config) error {
	_, err := database.InitDB(config)
	return err
}

// SetupFromFile reads the [database] section of a TOML settings file and
// initializes the process-wide connection from it.
func SetupFromFile(path string) error {
	var config database.Config
	if err := utils.LoadSettingsSection(path, "database", &config); err != nil {
		return err
	}
	return Setup(&config)
}

// Shutdown closes the process-wide database connection.
func Shutdown() error {
	return database.CloseDB()
}

// DB returns the process-wide Bun connection, or nil before Setup.
func DB() *bun.DB {
	return database.GetDB()
}

// NewRouter returns a chi router with the standard middleware stack
// attached.
func NewRouter(config middleware.StackConfig) *chi.Mux {
	return middleware.NewRouter(config)
}
