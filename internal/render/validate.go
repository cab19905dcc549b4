package render

import (
	"fmt"

	"natrender/internal/services"
)

// Range is a validated inclusive frame range.
type Range struct {
	First int `json:"first"`
	Last  int `json:"last"`
	Step  int `json:"step"`
}

func (r Range) String() string {
	if r.Step > 1 {
		return fmt.Sprintf("%d-%d x%d", r.First, r.Last, r.Step)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Validate resolves the effective range and step for work.
//
// An unspecified first or last frame takes the writer's declared range, or
// the project's global range when the writer declares none. An unspecified
// step takes the writer's frame-step knob. Steps are clamped to at least 1.
// The writer is never mutated.
func Validate(work Work, project Project) (Range, error) {
	if work.Writer == nil {
		return Range{}, services.Wrap(services.ErrValidation, "render", "validate", "work has no writer", nil)
	}
	name := work.Writer.Name()

	first, last := work.FirstFrame, work.LastFrame
	if work.rangeUnspecified() {
		var ok bool
		first, last, ok = work.Writer.FrameRange()
		if !ok {
			if project == nil {
				return Range{}, services.Wrap(services.ErrValidation, "render", "validate",
					fmt.Sprintf("%s: frame range unresolved", name), nil)
			}
			first, last = project.FrameRange()
		}
	}
	if first > last {
		return Range{}, services.Wrap(services.ErrValidation, "render", "validate",
			fmt.Sprintf("%s: first frame %d is greater than last frame %d", name, first, last), nil)
	}

	step := work.FrameStep
	if step == Unspecified {
		step = work.Writer.FrameStep()
	}
	if step < 1 {
		step = 1
	}
	return Range{First: first, Last: last, Step: step}, nil
}
