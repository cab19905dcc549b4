package queue

import (
	"context"
	"fmt"
	"time"
)

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM render_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClearFinished removes every record in a terminal status.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM render_items WHERE status IN (`+makePlaceholders(len(finishedStatuses))+`)`,
		statusArgs(finishedStatuses)...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM render_items`)
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return res.RowsAffected()
}

// FailStale marks records a previous daemon left pending or active as failed.
// The registry does not survive a restart, so those renders will never
// report back.
func (s *Store) FailStale(ctx context.Context) (int64, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.exec(ctx,
		`UPDATE render_items
         SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, "cancelled", DaemonStopReason, now, now,
		StatusPending, StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale records: %w", err)
	}
	return res.RowsAffected()
}
