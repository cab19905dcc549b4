package project

import (
	"context"

	"natrender/internal/render"
	"natrender/internal/services"
)

// Node is a project node. Output nodes also satisfy render.Writer.
type Node struct {
	spec    NodeSpec
	project *Project
}

// Name returns the node name.
func (n *Node) Name() string { return n.spec.Name }

// Kind returns the node kind.
func (n *Node) Kind() string { return n.spec.Kind }

// Writer returns n as a render.Writer when it is an output node.
func (n *Node) Writer() (render.Writer, bool) {
	if !n.spec.output() {
		return nil, false
	}
	return n, true
}

// FrameRange returns the range declared on the node.
func (n *Node) FrameRange() (int, int, bool) {
	if n.spec.FirstFrame == nil || n.spec.LastFrame == nil {
		return 0, 0, false
	}
	return *n.spec.FirstFrame, *n.spec.LastFrame, true
}

// FrameStep returns the frame-step knob, at least 1.
func (n *Node) FrameStep() int {
	return max(1, n.spec.FrameStep)
}

// IsVideo reports whether the writer targets a video container.
func (n *Node) IsVideo() bool { return n.spec.Video }

// SequenceName returns the output file pattern. Disk caches report "Caching".
func (n *Node) SequenceName() string {
	if n.spec.Kind == KindDiskCache {
		return cachingSequence
	}
	return n.spec.File
}

// Render hands the validated request to the project's frame renderer.
func (n *Node) Render(ctx context.Context, req render.Request, progress func(render.Progress)) error {
	renderer := n.project.frameRenderer()
	if renderer == nil {
		return services.Wrap(services.ErrConfiguration, "project", "render", "no frame renderer configured", nil)
	}
	return renderer.RenderFrames(ctx, FrameJob{
		ItemID:  req.ItemID,
		Project: n.project.Path(),
		Writer:  n.spec.Name,
		Output:  n.spec.File,
		First:   req.FirstFrame,
		Last:    req.LastFrame,
		Step:    req.FrameStep,
		Stats:   req.Stats,
	}, progress)
}

var (
	_ render.Node   = (*Node)(nil)
	_ render.Writer = (*Node)(nil)
)
