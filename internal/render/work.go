package render

import "math"

// Unspecified marks a frame or step value the validator must resolve.
const Unspecified = math.MinInt

// Work is an immutable render request for one writer.
type Work struct {
	Writer     Writer
	FirstFrame int
	LastFrame  int
	FrameStep  int
	Stats      bool
	Restart    bool
}

// NewWork returns a request for writer with every frame value unspecified.
func NewWork(writer Writer) Work {
	return Work{
		Writer:     writer,
		FirstFrame: Unspecified,
		LastFrame:  Unspecified,
		FrameStep:  Unspecified,
	}
}

// WithRange returns a copy of w limited to first..last by step. Any argument
// may be Unspecified.
func (w Work) WithRange(first, last, step int) Work {
	w.FirstFrame = first
	w.LastFrame = last
	w.FrameStep = step
	return w
}

// WriterName returns the target writer name, or an empty string.
func (w Work) WriterName() string {
	if w.Writer == nil {
		return ""
	}
	return w.Writer.Name()
}

func (w Work) rangeUnspecified() bool {
	return w.FirstFrame == Unspecified || w.LastFrame == Unspecified
}
