// Package postgres implements the task and user stores on PostgreSQL through
// database/sql and the pgx driver. Integrity violations are translated into
// the sentinels of internal/store, and the schema ships as embedded goose
// migrations applied by Migrate.
package postgres
