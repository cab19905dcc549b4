package project_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"natrender/internal/project"
	"natrender/internal/render"
	"natrender/internal/services"
)

const shotDocument = `
[project]
name = "shot010"
first_frame = 1
last_frame = 100

[[nodes]]
name = "Read1"
kind = "read"

[[nodes]]
name = "Write1"
kind = "writer"
file = "/renders/shot010.####.exr"
first_frame = 1
last_frame = 48
frame_step = 2

[[nodes]]
name = "Movie"
kind = "writer"
file = "/renders/shot010.mov"
video = true

[[nodes]]
name = "Cache1"
kind = "disk_cache"
`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot010.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

type captureRenderer struct {
	jobs []project.FrameJob
	err  error
}

func (c *captureRenderer) RenderFrames(_ context.Context, job project.FrameJob, progress func(render.Progress)) error {
	c.jobs = append(c.jobs, job)
	if progress != nil {
		progress(render.Progress{Frame: job.Last, Done: 1, Total: 1, Percent: 100})
	}
	return c.err
}

func TestLoadResolvesNodesAndWriters(t *testing.T) {
	p, err := project.Load(writeProject(t, shotDocument))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Name() != "shot010" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if first, last := p.FrameRange(); first != 1 || last != 100 {
		t.Fatalf("unexpected project range %d-%d", first, last)
	}

	writers := p.Writers()
	var names []string
	for _, w := range writers {
		names = append(names, w.Name())
	}
	if strings.Join(names, ",") != "Write1,Movie,Cache1" {
		t.Fatalf("unexpected writers %v", names)
	}

	node, ok := p.Node("Read1")
	if !ok {
		t.Fatal("expected Read1 to resolve")
	}
	if _, isWriter := node.Writer(); isWriter {
		t.Fatal("read node must not be an output node")
	}
	if _, ok := p.Node("Missing"); ok {
		t.Fatal("expected unknown node lookup to fail")
	}
}

func TestWriterKnobs(t *testing.T) {
	p, err := project.Load(writeProject(t, shotDocument))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	node, _ := p.Node("Write1")
	writer, ok := node.Writer()
	if !ok {
		t.Fatal("expected Write1 to be a writer")
	}
	first, last, declared := writer.FrameRange()
	if !declared || first != 1 || last != 48 {
		t.Fatalf("unexpected declared range %d-%d (%v)", first, last, declared)
	}
	if writer.FrameStep() != 2 {
		t.Fatalf("expected frame step 2, got %d", writer.FrameStep())
	}
	if writer.IsVideo() {
		t.Fatal("image sequence reported as video")
	}

	movieNode, _ := p.Node("Movie")
	movie, _ := movieNode.Writer()
	if _, _, declared := movie.FrameRange(); declared {
		t.Fatal("Movie declares no range")
	}
	if movie.FrameStep() != 1 {
		t.Fatalf("expected default frame step 1, got %d", movie.FrameStep())
	}
	if !movie.IsVideo() {
		t.Fatal("expected Movie to be a video writer")
	}

	cacheNode, _ := p.Node("Cache1")
	cache, _ := cacheNode.Writer()
	if cache.SequenceName() != "Caching" {
		t.Fatalf("disk cache sequence name = %q", cache.SequenceName())
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"inverted": "[project]\nfirst_frame = 10\nlast_frame = 1\n",
		"duplicate": `[[nodes]]
name = "A"
kind = "effect"
[[nodes]]
name = "A"
kind = "effect"
`,
		"writer without file": "[[nodes]]\nname = \"W\"\nkind = \"writer\"\n",
		"unknown kind":        "[[nodes]]\nname = \"W\"\nkind = \"teleport\"\n",
		"malformed":           "[project\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := project.Load(writeProject(t, body))
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := project.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRenderDelegatesToFrameRenderer(t *testing.T) {
	renderer := &captureRenderer{}
	path := writeProject(t, shotDocument)
	p, err := project.Load(path, project.WithRenderer(renderer))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	node, _ := p.Node("Write1")
	writer, _ := node.Writer()

	var updates int
	req := render.Request{ItemID: "item-1", FirstFrame: 1, LastFrame: 48, FrameStep: 2, Stats: true}
	if err := writer.Render(context.Background(), req, func(render.Progress) { updates++ }); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(renderer.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(renderer.jobs))
	}
	job := renderer.jobs[0]
	if job.Writer != "Write1" || job.Output != "/renders/shot010.####.exr" || job.Step != 2 || !job.Stats {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Project != p.Path() {
		t.Fatalf("job project %q, want %q", job.Project, p.Path())
	}
	if updates != 1 {
		t.Fatalf("expected progress to be forwarded, got %d", updates)
	}
}

func TestRenderWithoutRendererFails(t *testing.T) {
	p, err := project.Load(writeProject(t, shotDocument))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	node, _ := p.Node("Write1")
	writer, _ := node.Writer()
	err = writer.Render(context.Background(), render.Request{FirstFrame: 1, LastFrame: 1, FrameStep: 1}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSaveSnapshotRoundTrips(t *testing.T) {
	snapshots := filepath.Join(t.TempDir(), "snapshots")
	p, err := project.Load(writeProject(t, shotDocument), project.WithSnapshotDir(snapshots))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	first, err := p.SaveSnapshot(context.Background(), "render_save.toml")
	if err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}
	second, err := p.SaveSnapshot(context.Background(), "render_save.toml")
	if err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct snapshot files")
	}
	if filepath.Dir(first) != snapshots || filepath.Ext(first) != ".toml" {
		t.Fatalf("unexpected snapshot path %q", first)
	}

	reloaded, err := project.Load(first)
	if err != nil {
		t.Fatalf("reload snapshot: %v", err)
	}
	if len(reloaded.Writers()) != 3 {
		t.Fatalf("expected 3 writers after reload, got %d", len(reloaded.Writers()))
	}
	node, _ := reloaded.Node("Write1")
	writer, _ := node.Writer()
	if f, l, ok := writer.FrameRange(); !ok || f != 1 || l != 48 {
		t.Fatalf("declared range lost in snapshot: %d-%d (%v)", f, l, ok)
	}
}

func TestSaveSnapshotHonoursCancellation(t *testing.T) {
	p, err := project.Load(writeProject(t, shotDocument))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.SaveSnapshot(ctx, "render_save.toml"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
