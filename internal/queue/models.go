package queue

import "time"

// Status represents the lifecycle of a journal record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// DaemonStopReason is the error message set on records a stopped daemon left
// unfinished.
const DaemonStopReason = "daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusActive,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusRejected,
}

var finishedStatuses = []Status{
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusRejected,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// IsFinished reports whether the status is terminal.
func (s Status) IsFinished() bool {
	for _, status := range finishedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Record is one journaled queue item.
type Record struct {
	ID              string     `json:"id"`
	Writer          string     `json:"writer"`
	SequenceName    string     `json:"sequence_name"`
	FirstFrame      int        `json:"first_frame"`
	LastFrame       int        `json:"last_frame"`
	FrameStep       int        `json:"frame_step"`
	Mode            string     `json:"mode"`
	Status          Status     `json:"status"`
	PID             int        `json:"pid,omitempty"`
	SavePath        string     `json:"save_path,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the render ran, or zero when it never started.
func (r Record) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := r.UpdatedAt
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if end.Before(*r.StartedAt) {
		return 0
	}
	return end.Sub(*r.StartedAt)
}
