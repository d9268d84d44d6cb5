// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, option-driven queries, pagination, soft deletes with
// cascading, transactions, and upsert support.
package repository
