package project

import (
	"fmt"
	"strings"
)

// Node kinds understood by the loader.
const (
	KindWriter      = "writer"
	KindDiskCache   = "disk_cache"
	KindRead        = "read"
	KindViewer      = "viewer"
	KindGroupOutput = "group_output"
	KindEffect      = "effect"
)

// cachingSequence is the sequence name reported by disk cache nodes.
const cachingSequence = "Caching"

// Document is the on-disk form of a project.
type Document struct {
	Project Header     `toml:"project"`
	Nodes   []NodeSpec `toml:"nodes"`
}

// Header holds project-wide settings.
type Header struct {
	Name       string `toml:"name"`
	FirstFrame int    `toml:"first_frame"`
	LastFrame  int    `toml:"last_frame"`
}

// NodeSpec describes one node. Frame fields are optional; a writer only
// declares a range when both ends are present.
type NodeSpec struct {
	Name       string `toml:"name"`
	Kind       string `toml:"kind"`
	File       string `toml:"file,omitempty"`
	FirstFrame *int   `toml:"first_frame,omitempty"`
	LastFrame  *int   `toml:"last_frame,omitempty"`
	FrameStep  int    `toml:"frame_step,omitempty"`
	Video      bool   `toml:"video,omitempty"`
}

func (n NodeSpec) output() bool {
	return n.Kind == KindWriter || n.Kind == KindDiskCache
}

func (d *Document) normalize() {
	d.Project.Name = strings.TrimSpace(d.Project.Name)
	for i := range d.Nodes {
		node := &d.Nodes[i]
		node.Name = strings.TrimSpace(node.Name)
		node.Kind = strings.ToLower(strings.TrimSpace(node.Kind))
		if node.Kind == "" {
			node.Kind = KindEffect
		}
		node.File = strings.TrimSpace(node.File)
	}
}

func (d *Document) validate() error {
	if d.Project.FirstFrame > d.Project.LastFrame {
		return fmt.Errorf("project frame range %d-%d is inverted", d.Project.FirstFrame, d.Project.LastFrame)
	}
	seen := make(map[string]struct{}, len(d.Nodes))
	for i, node := range d.Nodes {
		if node.Name == "" {
			return fmt.Errorf("nodes[%d]: name is required", i)
		}
		if _, dup := seen[node.Name]; dup {
			return fmt.Errorf("nodes[%d]: duplicate node name %q", i, node.Name)
		}
		seen[node.Name] = struct{}{}
		switch node.Kind {
		case KindWriter:
			if node.File == "" {
				return fmt.Errorf("node %s: writer requires a file", node.Name)
			}
		case KindDiskCache, KindRead, KindViewer, KindGroupOutput, KindEffect:
		default:
			return fmt.Errorf("node %s: unknown kind %q", node.Name, node.Kind)
		}
		if node.FrameStep < 0 {
			return fmt.Errorf("node %s: frame_step must be positive", node.Name)
		}
	}
	return nil
}
