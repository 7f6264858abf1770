// Package repository implements the engine's SQL persistence boundary:
// one file per aggregate (trackers, tracker_revisions, tasks,
// scheduler_jobs, notifications), following the teacher's
// one-repository-file-per-aggregate layout. Queries target PostgreSQL
// placeholder syntax ($1, $2, ...) via github.com/jackc/pgx/v5/stdlib,
// the primary driver wired in internal/storage/sql/connection.go.
package repository

import (
	"database/sql"
)

// Store aggregates every table-scoped repository behind a single
// *sql.DB, constructed once at startup and passed by reference into the
// engine's components (revisions.Store, tasks.Queue, scheduler.Scheduler,
// fetch.Pipeline).
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-connected, migrated *sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for callers (e.g. health checks) that
// need it directly.
func (s *Store) DB() *sql.DB {
	return s.db
}
