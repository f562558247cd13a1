package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"competesync/pkg/logger"
	"competesync/pkg/paginator"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DefaultIDFields are tried in order to find a record's identifier
var DefaultIDFields = []string{"id", "participantId", "uuid"}

// Sink receives the items of a completed fetch
type Sink interface {
	Upsert(ctx context.Context, collection string, items []paginator.RawItem) (int, error)
}

// Store is a SQLite-backed Sink
type Store struct {
	db       *sql.DB
	idFields []string
	log      logger.Logger
	now      func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:       db,
		idFields: DefaultIDFields,
		log:      logger.Component("storage"),
		now:      time.Now,
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces every item that has an identifier, in one
// transaction. It returns the number of items written.
func (s *Store) Upsert(ctx context.Context, collection string, items []paginator.RawItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		insert into items (collection, id, data, updated_at)
		values (?, ?, ?, ?)
		on conflict (collection, id) do update set
			data = excluded.data,
			updated_at = excluded.updated_at
		where items.data <> excluded.data`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC().Format(time.RFC3339)
	written, skipped := 0, 0
	for _, item := range items {
		id := s.identify(item)
		if id == "" {
			skipped++
			continue
		}

		data, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("failed to encode item %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, id, string(data), now); err != nil {
			return 0, fmt.Errorf("failed to upsert item %s: %w", id, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	if skipped > 0 {
		s.log.WarnWithFields("skipped items without identifier", map[string]interface{}{
			"collection": collection,
			"skipped":    skipped,
		})
	}
	return written, nil
}

// List returns the items of collection ordered by orderField (a top-level
// JSON key), or by first insertion when orderField is empty.
func (s *Store) List(ctx context.Context, collection, orderField string) ([]paginator.RawItem, error) {
	query := `select data from items where collection = ? order by rowid`
	args := []any{collection}
	if orderField != "" {
		query = `select data from items where collection = ? order by json_extract(data, ?), id`
		args = append(args, "$."+orderField)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	items := []paginator.RawItem{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		var item paginator.RawItem
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of items in collection
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from items where collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// identify returns the first non-empty identifier field as a string
func (s *Store) identify(item paginator.RawItem) string {
	for _, field := range s.idFields {
		switch v := item[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
