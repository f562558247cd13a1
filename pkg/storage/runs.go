package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one sync
type Run struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Resource   string    `json:"resource,omitempty"`
	Filter     string    `json:"filter,omitempty"`
	Reason     string    `json:"reason"`
	Count      int       `json:"count"`
	Pages      int       `json:"pages"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RecordRun stores run, assigning an id when it has none
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		insert into sync_runs
			(id, collection, resource, filter, reason, item_count, pages, error, started_at, finished_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Collection, run.Resource, run.Filter, run.Reason, run.Count, run.Pages, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return run, fmt.Errorf("failed to record sync run: %w", err)
	}
	return run, nil
}

// LastRun returns the most recent run for collection and resource, or nil if none
func (s *Store) LastRun(ctx context.Context, collection, resource string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, collection, resource, filter, reason, item_count, pages, error, started_at, finished_at
		from sync_runs
		where collection = ? and resource = ?
		order by finished_at desc
		limit 1`, collection, resource)

	var run Run
	var started, finished string
	err := row.Scan(&run.ID, &run.Collection, &run.Resource, &run.Filter, &run.Reason,
		&run.Count, &run.Pages, &run.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync run: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &run, nil
}
