package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"natrender/internal/render"
	"natrender/internal/services"
	"natrender/internal/textutil"
)

// FrameJob is the pixel work for one validated writer request.
type FrameJob struct {
	ItemID  string
	Project string
	Writer  string
	Output  string
	First   int
	Last    int
	Step    int
	Stats   bool
}

// FrameRenderer performs the actual frame work for output nodes.
type FrameRenderer interface {
	RenderFrames(ctx context.Context, job FrameJob, progress func(render.Progress)) error
}

// Option configures a loaded project.
type Option func(*Project)

// WithRenderer sets the renderer output nodes delegate to.
func WithRenderer(renderer FrameRenderer) Option {
	return func(p *Project) { p.renderer = renderer }
}

// WithSnapshotDir sets the directory snapshots are written to. The project
// directory is used when unset.
func WithSnapshotDir(dir string) Option {
	return func(p *Project) { p.snapshotDir = strings.TrimSpace(dir) }
}

// Project is a loaded project document. It satisfies render.Project.
type Project struct {
	path        string
	snapshotDir string
	renderer    FrameRenderer

	mu      sync.RWMutex
	doc     Document
	nodes   map[string]*Node
	writers []render.Writer
}

// Load reads and validates the project at path.
func Load(path string, opts ...Option) (*Project, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "project", "load", "project path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "project", "load", path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "project", "load", "read "+path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p, err := Parse(data, opts...)
	if err != nil {
		return nil, err
	}
	p.path = abs
	return p, nil
}

// Parse builds a project from TOML data. The project has no path until it is
// saved or loaded from disk.
func Parse(data []byte, opts ...Option) (*Project, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "project", "parse", "decode project", err)
	}
	p := &Project{}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.setDocument(doc); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) setDocument(doc Document) error {
	doc.normalize()
	if err := doc.validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "project", "validate", "", err)
	}
	nodes := make(map[string]*Node, len(doc.Nodes))
	var writers []render.Writer
	for _, spec := range doc.Nodes {
		node := &Node{spec: spec, project: p}
		nodes[spec.Name] = node
		if spec.output() {
			writers = append(writers, node)
		}
	}
	p.mu.Lock()
	p.doc = doc
	p.nodes = nodes
	p.writers = writers
	p.mu.Unlock()
	return nil
}

// Path returns the absolute path the project was loaded from.
func (p *Project) Path() string {
	return p.path
}

// Name returns the project name, falling back to the file stem.
func (p *Project) Name() string {
	p.mu.RLock()
	name := p.doc.Project.Name
	p.mu.RUnlock()
	if name != "" || p.path == "" {
		return name
	}
	base := filepath.Base(p.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Node looks a node up by name.
func (p *Project) Node(name string) (render.Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	node, ok := p.nodes[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return node, true
}

// Writers returns the output nodes in document order.
func (p *Project) Writers() []render.Writer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]render.Writer, len(p.writers))
	copy(out, p.writers)
	return out
}

// FrameRange returns the project's global frame range.
func (p *Project) FrameRange() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Project.FirstFrame, p.doc.Project.LastFrame
}

// Document returns a copy of the project document.
func (p *Project) Document() Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc := p.doc
	doc.Nodes = append([]NodeSpec(nil), p.doc.Nodes...)
	return doc
}

// SaveSnapshot writes the current document to a new file in the snapshot
// directory. name provides the file stem and extension; every call creates a
// distinct file so concurrent batches never share a snapshot.
func (p *Project) SaveSnapshot(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := p.snapshotDir
	if dir == "" && p.path != "" {
		dir = filepath.Dir(p.path)
	}
	if dir == "" {
		return "", services.Wrap(services.ErrConfiguration, "project", "snapshot", "no snapshot directory", nil)
	}
	name = textutil.SanitizeFileName(name, "render_save.toml")
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	data, err := toml.Marshal(p.Document())
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	file, err := os.CreateTemp(dir, stem+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return file.Name(), nil
}

func (p *Project) frameRenderer() FrameRenderer {
	return p.renderer
}

var _ render.Project = (*Project)(nil)
