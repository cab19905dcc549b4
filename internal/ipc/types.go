package ipc

import (
	"time"

	"natrender/internal/render"
)

// SubmitRequest names writers to render. Empty Writers means every writer of
// the loaded project; empty Ranges means the writers' own ranges.
type SubmitRequest struct {
	Writers  []string           `json:"writers"`
	Ranges   []render.FrameSpan `json:"ranges"`
	Stats    bool               `json:"stats"`
	Restart  bool               `json:"restart"`
	Blocking bool               `json:"blocking"`
}

// Outcome is the wire form of one submitted render.
type Outcome struct {
	Item      render.Info `json:"item"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// SubmitResponse lists outcomes in request order.
type SubmitResponse struct {
	Outcomes []Outcome `json:"outcomes"`
}

// StatusRequest requests daemon status.
type StatusRequest struct{}

// PreflightResult is the wire form of a preflight check.
type PreflightResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// StatusResponse reports daemon state and the render registry.
type StatusResponse struct {
	Running     bool              `json:"running"`
	PID         int               `json:"pid"`
	SessionID   string            `json:"session_id"`
	Project     string            `json:"project"`
	ProjectName string            `json:"project_name"`
	Settings    render.Settings   `json:"settings"`
	Active      []render.Info     `json:"active"`
	Pending     []render.Info     `json:"pending"`
	JournalPath string            `json:"journal_path"`
	LockPath    string            `json:"lock_path"`
	History     map[string]int    `json:"history"`
	Preflight   []PreflightResult `json:"preflight"`
}

// CancelRequest cancels the render for a writer.
type CancelRequest struct {
	Writer string `json:"writer"`
}

// CancelResponse reports a cancellation.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// RemoveRequest drops a pending render.
type RemoveRequest struct {
	Writer string `json:"writer"`
}

// RemoveResponse reports a removal.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// SettingsRequest reads the dispatch policy, replacing it first when Update
// is set.
type SettingsRequest struct {
	Update *render.Settings `json:"update,omitempty"`
}

// SettingsResponse carries the effective dispatch policy.
type SettingsResponse struct {
	Settings render.Settings `json:"settings"`
}

// HistoryRequest lists journal records.
type HistoryRequest struct {
	Statuses []string `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// HistoryRecord is the wire form of a journal record.
type HistoryRecord struct {
	ID              string     `json:"id"`
	Writer          string     `json:"writer"`
	SequenceName    string     `json:"sequence_name"`
	FirstFrame      int        `json:"first_frame"`
	LastFrame       int        `json:"last_frame"`
	FrameStep       int        `json:"frame_step"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	PID             int        `json:"pid,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// HistoryResponse lists records newest first.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// ClearHistoryRequest removes finished records, or all of them.
type ClearHistoryRequest struct {
	All bool `json:"all"`
}

// ClearHistoryResponse reports how many records were removed.
type ClearHistoryResponse struct {
	Removed int64 `json:"removed"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
