package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"natrender/internal/render"
	"natrender/internal/services"
)

// upsertSQL inserts a record or moves an existing one to a new status. The
// descriptive columns are refreshed on every transition; timestamps only move
// forward.
const upsertSQL = `INSERT INTO render_items (
        id, writer, sequence_name, first_frame, last_frame, frame_step, mode,
        status, pid, save_path, progress_percent, error_kind, error_message,
        created_at, updated_at, started_at, finished_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        sequence_name = excluded.sequence_name,
        mode = excluded.mode,
        status = excluded.status,
        pid = COALESCE(excluded.pid, render_items.pid),
        save_path = COALESCE(excluded.save_path, render_items.save_path),
        progress_percent = MAX(excluded.progress_percent, render_items.progress_percent),
        error_kind = excluded.error_kind,
        error_message = excluded.error_message,
        updated_at = excluded.updated_at,
        started_at = COALESCE(render_items.started_at, excluded.started_at),
        finished_at = COALESCE(excluded.finished_at, render_items.finished_at)`

type transition struct {
	status   Status
	progress float64
	err      error
	finished bool
}

func (s *Store) upsert(ctx context.Context, info render.Info, t transition) error {
	now := time.Now().UTC()
	created := info.SubmittedAt
	if created.IsZero() {
		created = now
	}
	var (
		errorKind    string
		errorMessage string
		finishedAt   time.Time
	)
	if t.err != nil {
		errorKind = services.Kind(t.err)
		errorMessage = t.err.Error()
	}
	if t.finished {
		finishedAt = now
	}
	_, err := s.exec(ctx, upsertSQL,
		info.ID,
		info.Writer,
		nullableString(info.SequenceName),
		info.Range.First,
		info.Range.Last,
		max(1, info.Range.Step),
		nullableString(string(info.Mode)),
		t.status,
		nullableInt(info.PID),
		nullableString(info.SavePath),
		t.progress,
		nullableString(errorKind),
		nullableString(errorMessage),
		formatTime(created),
		formatTime(now),
		nullableTime(info.StartedAt),
		nullableTime(finishedAt),
	)
	return err
}

// RecordQueued journals an item waiting in the pending queue.
func (s *Store) RecordQueued(ctx context.Context, info render.Info) error {
	if err := s.upsert(ctx, info, transition{status: StatusPending}); err != nil {
		return fmt.Errorf("record queued: %w", err)
	}
	return nil
}

// RecordStarted journals an item that became active.
func (s *Store) RecordStarted(ctx context.Context, info render.Info) error {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	if err := s.upsert(ctx, info, transition{status: StatusActive}); err != nil {
		return fmt.Errorf("record started: %w", err)
	}
	return nil
}

// RecordProgress stores the latest progress percentage of an active item.
func (s *Store) RecordProgress(ctx context.Context, id string, percent float64) error {
	_, err := s.exec(ctx,
		`UPDATE render_items SET progress_percent = ?, updated_at = ? WHERE id = ? AND status = ?`,
		percent, formatTime(time.Now().UTC()), id, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	return nil
}

// RecordFinished journals the end of a render. err selects the terminal
// status.
func (s *Store) RecordFinished(ctx context.Context, info render.Info, err error) error {
	t := transition{status: FinishStatus(err), err: err, finished: true}
	if err == nil {
		t.progress = 100
	}
	if upsertErr := s.upsert(ctx, info, t); upsertErr != nil {
		return fmt.Errorf("record finished: %w", upsertErr)
	}
	return nil
}

// RecordRejected journals an item refused at submission.
func (s *Store) RecordRejected(ctx context.Context, info render.Info, err error) error {
	if upsertErr := s.upsert(ctx, info, transition{status: StatusRejected, err: err, finished: true}); upsertErr != nil {
		return fmt.Errorf("record rejected: %w", upsertErr)
	}
	return nil
}

// RecordRemoved journals a pending item dropped before it started.
func (s *Store) RecordRemoved(ctx context.Context, info render.Info, err error) error {
	if upsertErr := s.upsert(ctx, info, transition{status: StatusCancelled, err: err, finished: true}); upsertErr != nil {
		return fmt.Errorf("record removed: %w", upsertErr)
	}
	return nil
}

// Get fetches a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM render_items WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// List returns records filtered by status set (or all records when no status
// is provided), newest first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM render_items`
	args := statusArgs(statuses)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
