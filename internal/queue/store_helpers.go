package queue

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "id, writer, sequence_name, first_frame, last_frame, frame_step, mode, status, pid, save_path, progress_percent, error_kind, error_message, created_at, updated_at, started_at, finished_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		record          Record
		statusStr       string
		sequenceName    sql.NullString
		mode            sql.NullString
		pid             sql.NullInt64
		savePath        sql.NullString
		progressPercent sql.NullFloat64
		errorKind       sql.NullString
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&record.ID,
		&record.Writer,
		&sequenceName,
		&record.FirstFrame,
		&record.LastFrame,
		&record.FrameStep,
		&mode,
		&statusStr,
		&pid,
		&savePath,
		&progressPercent,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	record.Status = Status(statusStr)
	record.SequenceName = sequenceName.String
	record.Mode = mode.String
	record.PID = int(pid.Int64)
	record.SavePath = savePath.String
	record.ProgressPercent = progressPercent.Float64
	record.ErrorKind = errorKind.String
	record.ErrorMessage = errorMessage.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return &record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
