package render

import (
	"context"
	"time"
)

// Writer is a terminal node that produces a file sequence or a video container.
type Writer interface {
	Name() string
	// FrameRange returns the range declared on the writer, if any.
	FrameRange() (first, last int, ok bool)
	// FrameStep returns the writer's frame-step knob.
	FrameStep() int
	// IsVideo reports whether the output is a video container. Video renders
	// cannot be paused.
	IsVideo() bool
	SequenceName() string
	Render(ctx context.Context, req Request, progress func(Progress)) error
}

// Node is any node of the project graph.
type Node interface {
	Name() string
	// Writer returns the node as a Writer when it is an output node.
	Writer() (Writer, bool)
}

// Project resolves writers and saves snapshots for child renders.
type Project interface {
	Node(name string) (Node, bool)
	Writers() []Writer
	FrameRange() (first, last int)
	SaveSnapshot(ctx context.Context, name string) (string, error)
}

// Request is the validated unit handed to a Writer.
type Request struct {
	ItemID     string
	FirstFrame int
	LastFrame  int
	FrameStep  int
	Stats      bool
}

// Frames returns the number of frames the request covers.
func (r Request) Frames() int {
	if r.FrameStep < 1 || r.LastFrame < r.FirstFrame {
		return 0
	}
	return (r.LastFrame-r.FirstFrame)/r.FrameStep + 1
}

// Progress reports render advancement for one item.
type Progress struct {
	Frame   int           `json:"frame"`
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Percent float64       `json:"percent"`
	Elapsed time.Duration `json:"elapsed"`
}

// ProcessSpec describes a child render.
type ProcessSpec struct {
	ItemID      string
	ProjectPath string
	Writer      string
	Range       Range
	Stats       bool
	Progress    func(Progress)
}

// ProcessRunner starts child render processes.
type ProcessRunner interface {
	Start(ctx context.Context, spec ProcessSpec) (ProcessHandle, error)
}

// ProcessHandle tracks a running child render. Done delivers exactly one
// value, nil on a zero exit status.
type ProcessHandle interface {
	PID() int
	Done() <-chan error
	Terminate() error
}
