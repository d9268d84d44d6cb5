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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory wires a Config into a database manager and drives the
// initialization sequence: connect, migrate, seed.
type BaseDatabaseFactory struct {
	config  *Config
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory creates a database factory for the given configuration.
// Connection defaults are applied for unset pool fields, and environment
// variables override file-provided values.
func NewDatabaseFactory(config *Config) (*BaseDatabaseFactory, error) {
	if config == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	applyConnectionDefaults(&config.ConnectionConfig)
	overrideFromEnv(&config.ConnectionConfig)

	if err := config.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}

	return &BaseDatabaseFactory{
		config: config,
		logger: GetLogger(),
	}, nil
}

// applyConnectionDefaults fills zero-valued pool and timeout fields from
// DefaultConnectionConfig.
func applyConnectionDefaults(c *ConnectionConfig) {
	defaults := DefaultConnectionConfig()
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = defaults.ReconnectInterval
	}
	if c.MaxReconnectTries == 0 {
		c.MaxReconnectTries = defaults.MaxReconnectTries
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.SlowQueryTime == 0 {
		c.SlowQueryTime = defaults.SlowQueryTime
	}
}

// overrideFromEnv applies environment variable overrides to the connection
// configuration so deployments can reconfigure without editing files.
func overrideFromEnv(c *ConnectionConfig) {
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Type = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DB_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.SSLMode = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIdleConns = n
		}
	}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOpenConns = n
		}
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("DB_ENABLE_RECONNECT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableReconnect = b
		}
	}
	if v := os.Getenv("DB_RECONNECT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReconnectInterval = d
		}
	}
	if v := os.Getenv("DB_ENABLE_QUERY_LOG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableQueryLog = b
		}
	}
}

// CreateDatabaseManager returns the managed database instance, creating it on
// first use.
func (f *BaseDatabaseFactory) CreateDatabaseManager() AbstractDatabaseManager {
	if f.manager == nil {
		f.manager = NewDatabaseManager(f.config)
	}
	return f.manager
}

// InitializeDatabase connects to the database, optionally runs migrations,
// and seeds initial data when configured to do so on startup.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	manager := f.CreateDatabaseManager()

	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if runMigrations {
		if err := manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if f.config.DataInitConfig.AutoInitOnStartup {
		if err := manager.InitData(ctx); err != nil {
			return fmt.Errorf("failed to initialize data: %w", err)
		}
	}

	return nil
}

// GetManager returns the managed database instance, or nil before creation.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the underlying Bun instance, or nil when not connected.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// GetStats reports connection pool statistics for the managed database.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}

// Close disconnects the managed database.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus reports the health of the managed connection.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}
