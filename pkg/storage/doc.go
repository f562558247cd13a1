// Package storage persists fetched records in SQLite and exports them as JSON.
//
// Records are keyed by (collection, id) where id is read from the first
// present identifier field, so writing the same fetch twice leaves the store
// unchanged. Every sync additionally leaves a row in sync_runs.
package storage
