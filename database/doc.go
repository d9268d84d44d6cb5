// Package database provides connection management, migrations, foreign key
// handling, SQL data seeding, configuration types, logging, health checks,
// and context helpers for transaction propagation, built on top of Bun.
package database
