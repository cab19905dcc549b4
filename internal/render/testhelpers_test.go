package render_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"natrender/internal/render"
)

const waitFor = 2 * time.Second

type fakeWriter struct {
	name     string
	first    int
	last     int
	hasRange bool
	step     int
	video    bool

	// gate, when set, holds every render until it is closed or the context
	// ends.
	gate chan struct{}
	err  error

	mu       sync.Mutex
	requests []render.Request

	running    atomic.Int32
	maxRunning atomic.Int32
}

func newWriter(name string) *fakeWriter {
	return &fakeWriter{name: name, step: 1}
}

func (w *fakeWriter) gated() *fakeWriter {
	w.gate = make(chan struct{})
	return w
}

func (w *fakeWriter) withRange(first, last int) *fakeWriter {
	w.first, w.last, w.hasRange = first, last, true
	return w
}

func (w *fakeWriter) Name() string { return w.name }

func (w *fakeWriter) FrameRange() (int, int, bool) { return w.first, w.last, w.hasRange }

func (w *fakeWriter) FrameStep() int { return w.step }

func (w *fakeWriter) IsVideo() bool { return w.video }

func (w *fakeWriter) SequenceName() string { return "/renders/" + w.name + ".####.exr" }

func (w *fakeWriter) Render(ctx context.Context, req render.Request, progress func(render.Progress)) error {
	current := w.running.Add(1)
	defer w.running.Add(-1)
	for {
		seen := w.maxRunning.Load()
		if current <= seen || w.maxRunning.CompareAndSwap(seen, current) {
			break
		}
	}

	w.mu.Lock()
	w.requests = append(w.requests, req)
	w.mu.Unlock()

	if progress != nil {
		progress(render.Progress{Frame: req.FirstFrame, Done: 1, Total: req.Frames(), Percent: 100})
	}
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.err
}

func (w *fakeWriter) release() { close(w.gate) }

func (w *fakeWriter) renderCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}

type fakeNode struct {
	name   string
	writer render.Writer
}

func (n fakeNode) Name() string { return n.name }

func (n fakeNode) Writer() (render.Writer, bool) { return n.writer, n.writer != nil }

type fakeProject struct {
	first, last int
	nodes       map[string]fakeNode
	writers     []render.Writer

	snapshotErr error
	snapshots   atomic.Int32
	// snapshotDir, when set, makes SaveSnapshot write real files there.
	snapshotDir string
}

func newProject(writers ...*fakeWriter) *fakeProject {
	p := &fakeProject{first: 1, last: 24, nodes: make(map[string]fakeNode)}
	for _, w := range writers {
		p.nodes[w.name] = fakeNode{name: w.name, writer: w}
		p.writers = append(p.writers, w)
	}
	return p
}

func (p *fakeProject) addNode(name string) {
	p.nodes[name] = fakeNode{name: name}
}

func (p *fakeProject) Node(name string) (render.Node, bool) {
	node, ok := p.nodes[name]
	return node, ok
}

func (p *fakeProject) Writers() []render.Writer { return p.writers }

func (p *fakeProject) FrameRange() (int, int) { return p.first, p.last }

func (p *fakeProject) SaveSnapshot(context.Context, string) (string, error) {
	if p.snapshotErr != nil {
		return "", p.snapshotErr
	}
	n := p.snapshots.Add(1)
	if p.snapshotDir == "" {
		return fmt.Sprintf("/nonexistent/snapshots/snapshot-%d.toml", n), nil
	}
	path := filepath.Join(p.snapshotDir, fmt.Sprintf("snapshot-%d.toml", n))
	if err := os.WriteFile(path, []byte("[project]\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func snapshotFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

type recorder struct {
	mu     sync.Mutex
	events []render.Event
}

func (r *recorder) HandleRenderEvent(_ context.Context, event render.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) filter(eventType render.EventType) []render.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []render.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (r *recorder) writers(eventType render.EventType) []string {
	var out []string
	for _, event := range r.filter(eventType) {
		out = append(out, event.Item.Writer)
	}
	return out
}

func (r *recorder) finishedFor(writer string) (render.Event, bool) {
	for _, event := range r.filter(render.EventFinished) {
		if event.Item.Writer == writer {
			return event, true
		}
	}
	return render.Event{}, false
}

type fakeHandle struct {
	pid  int
	done chan error
	once sync.Once
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Done() <-chan error { return h.done }

func (h *fakeHandle) Terminate() error {
	h.exit(errors.New("signal: terminated"))
	return nil
}

func (h *fakeHandle) exit(err error) {
	h.once.Do(func() {
		h.done <- err
		close(h.done)
	})
}

type fakeRunner struct {
	mu      sync.Mutex
	specs   []render.ProcessSpec
	handles map[string]*fakeHandle
	fail    map[string]error
	nextPID int
}

func newRunner() *fakeRunner {
	return &fakeRunner{handles: make(map[string]*fakeHandle), fail: make(map[string]error), nextPID: 4000}
}

func (r *fakeRunner) Start(_ context.Context, spec render.ProcessSpec) (render.ProcessHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[spec.Writer]; err != nil {
		return nil, err
	}
	r.nextPID++
	handle := &fakeHandle{pid: r.nextPID, done: make(chan error, 1)}
	r.specs = append(r.specs, spec)
	r.handles[spec.Writer] = handle
	return handle, nil
}

func (r *fakeRunner) handle(writer string) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[writer]
}

func (r *fakeRunner) specList() []render.ProcessSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render.ProcessSpec(nil), r.specs...)
}

func startDispatcher(t *testing.T, project render.Project, opts ...render.Option) (*render.Dispatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]render.Option{render.WithObserver(rec), render.WithMetricSink(nil)}, opts...)
	d := render.NewDispatcher(project, opts...)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	return d, rec
}

func requireCounts(t *testing.T, d *render.Dispatcher, active, pending int) {
	t.Helper()
	require.Eventually(t, func() bool {
		a, p := d.Registry().Counts()
		return a == active && p == pending
	}, waitFor, 5*time.Millisecond, "expected %d active and %d pending", active, pending)
}

func works(writers ...*fakeWriter) []render.Work {
	out := make([]render.Work, 0, len(writers))
	for _, w := range writers {
		out = append(out, render.NewWork(w))
	}
	return out
}

func (r *recorder) awaitFinished(t *testing.T, writer string) render.Event {
	t.Helper()
	var event render.Event
	require.Eventually(t, func() bool {
		var ok bool
		event, ok = r.finishedFor(writer)
		return ok
	}, waitFor, 5*time.Millisecond, "no finished event for %s", writer)
	return event
}

func (r *recorder) awaitCount(t *testing.T, eventType render.EventType, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.filter(eventType)) == n
	}, waitFor, 5*time.Millisecond, "expected %d %s events", n, eventType)
}
