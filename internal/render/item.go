package render

import (
	"time"

	"github.com/google/uuid"
)

// Mode records how a queue item executes.
type Mode string

const (
	ModeBlocking  Mode = "blocking"
	ModeInProcess Mode = "in_process"
	ModeProcess   Mode = "process"
)

// QueueItem is a validated Work bound to its execution details. Items are
// created per submission and discarded once their render finishes.
type QueueItem struct {
	ID           string
	Work         Work
	Range        Range
	SequenceName string
	SavePath     string
	Mode         Mode
	SubmittedAt  time.Time

	// process and startedAt are guarded by the registry lock once the item
	// has been admitted.
	process   ProcessHandle
	startedAt time.Time
}

// NewQueueItem wraps a validated Work. The dispatcher creates items at
// submission time; tests and tools may build them directly.
func NewQueueItem(work Work, rng Range, mode Mode) *QueueItem {
	return &QueueItem{
		ID:           uuid.NewString(),
		Work:         work,
		Range:        rng,
		SequenceName: work.Writer.SequenceName(),
		Mode:         mode,
		SubmittedAt:  time.Now().UTC(),
	}
}

// Writer returns the target writer name.
func (q *QueueItem) Writer() string {
	return q.Work.WriterName()
}

// Pausable reports whether the render may be paused; video containers cannot.
func (q *QueueItem) Pausable() bool {
	return q.Work.Writer != nil && !q.Work.Writer.IsVideo()
}

func (q *QueueItem) request() Request {
	return Request{
		ItemID:     q.ID,
		FirstFrame: q.Range.First,
		LastFrame:  q.Range.Last,
		FrameStep:  q.Range.Step,
		Stats:      q.Work.Stats,
	}
}

// info copies the item; callers hold the registry lock when the item is
// admitted.
func (q *QueueItem) info() Info {
	info := Info{
		ID:           q.ID,
		Writer:       q.Writer(),
		SequenceName: q.SequenceName,
		Range:        q.Range,
		Mode:         q.Mode,
		Pausable:     q.Pausable(),
		Stats:        q.Work.Stats,
		Restart:      q.Work.Restart,
		SavePath:     q.SavePath,
		SubmittedAt:  q.SubmittedAt,
		StartedAt:    q.startedAt,
	}
	if q.process != nil {
		info.PID = q.process.PID()
	}
	return info
}

// Info is a read-only copy of a queue item.
type Info struct {
	ID           string    `json:"id"`
	Writer       string    `json:"writer"`
	SequenceName string    `json:"sequence_name"`
	Range        Range     `json:"range"`
	Mode         Mode      `json:"mode"`
	Pausable     bool      `json:"pausable"`
	Stats        bool      `json:"stats"`
	Restart      bool      `json:"restart"`
	SavePath     string    `json:"save_path,omitempty"`
	PID          int       `json:"pid,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// rejectedInfo describes work that never became a queue item.
func rejectedInfo(work Work) Info {
	info := Info{
		ID:          uuid.NewString(),
		Writer:      work.WriterName(),
		Range:       Range{First: work.FirstFrame, Last: work.LastFrame, Step: work.FrameStep},
		Stats:       work.Stats,
		Restart:     work.Restart,
		SubmittedAt: time.Now().UTC(),
	}
	if work.Writer != nil {
		info.SequenceName = work.Writer.SequenceName()
		info.Pausable = !work.Writer.IsVideo()
	}
	return info
}
