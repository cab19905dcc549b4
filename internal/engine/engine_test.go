package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"natrender/internal/config"
	"natrender/internal/project"
	"natrender/internal/render"
	"natrender/internal/services"
)

type capturedCall struct {
	name string
	args []string
}

func setHelperCommand(t *testing.T, mode string) *[]capturedCall {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []capturedCall
	)
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		mu.Lock()
		calls = append(calls, capturedCall{name: name, args: append([]string(nil), args...)})
		mu.Unlock()
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("ENGINE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &calls
}

func TestOutputPath(t *testing.T) {
	cases := []struct {
		pattern string
		frame   int
		want    string
	}{
		{"/r/shot.####.exr", 7, "/r/shot.0007.exr"},
		{"/r/shot.#.exr", 12, "/r/shot.12.exr"},
		{"/r/shot.%04d.exr", 42, "/r/shot.0042.exr"},
		{"/r/shot.%d.exr", 42, "/r/shot.42.exr"},
		{"/r/shot.####.exr", -3, "/r/shot.-0003.exr"},
		{"/r/shot.mov", 5, "/r/shot.mov"},
		{"", 5, ""},
	}
	for _, tc := range cases {
		if got := OutputPath(tc.pattern, tc.frame); got != tc.want {
			t.Fatalf("OutputPath(%q, %d) = %q, want %q", tc.pattern, tc.frame, got, tc.want)
		}
	}
}

func TestRenderFramesRunsCommandPerFrame(t *testing.T) {
	calls := setHelperCommand(t, "success")
	e := New(nil, WithCommand(`comp --frame {frame} --out "{output}" --node {writer} {project}`))

	var updates []render.Progress
	job := project.FrameJob{
		Project: "/p/shot.toml",
		Writer:  "Write1",
		Output:  "/r/out dir/shot.###.png",
		First:   1,
		Last:    5,
		Step:    2,
		Stats:   true,
	}
	if err := e.RenderFrames(context.Background(), job, func(p render.Progress) { updates = append(updates, p) }); err != nil {
		t.Fatalf("RenderFrames returned error: %v", err)
	}

	if len(*calls) != 3 {
		t.Fatalf("expected 3 frame commands, got %d", len(*calls))
	}
	first := (*calls)[0]
	if first.name != "comp" {
		t.Fatalf("unexpected binary %q", first.name)
	}
	want := "--frame 1 --out /r/out dir/shot.001.png --node Write1 /p/shot.toml"
	if got := strings.Join(first.args, " "); got != want {
		t.Fatalf("unexpected args %q, want %q", got, want)
	}
	if (*calls)[2].args[1] != "5" {
		t.Fatalf("expected last frame 5, got %v", (*calls)[2].args)
	}

	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	last := updates[2]
	if last.Done != 3 || last.Total != 3 || last.Percent != 100 || last.Frame != 5 {
		t.Fatalf("unexpected final progress %+v", last)
	}
}

func TestRenderFramesRequiresCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Render.FrameCommand = ""
	e := New(&cfg)
	err := e.RenderFrames(context.Background(), project.FrameJob{First: 1, Last: 1, Step: 1}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRenderFramesReportsCommandFailure(t *testing.T) {
	setHelperCommand(t, "failure")
	e := New(nil, WithCommand("comp {frame}"))
	err := e.RenderFrames(context.Background(), project.FrameJob{Writer: "W", First: 3, Last: 4, Step: 1}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "frame 3") || !strings.Contains(err.Error(), "disk quota exceeded") {
		t.Fatalf("error should name frame and output tail: %v", err)
	}
}

func TestRenderFramesStopsWhenCancelled(t *testing.T) {
	calls := setHelperCommand(t, "success")
	e := New(nil, WithCommand("comp {frame}"))

	ctx, cancel := context.WithCancel(context.Background())
	progress := func(p render.Progress) {
		if p.Done == 2 {
			cancel()
		}
	}
	err := e.RenderFrames(ctx, project.FrameJob{Writer: "W", First: 1, Last: 10, Step: 1}, progress)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected rendering to stop after 2 frames, ran %d", len(*calls))
	}
}

func TestRenderFramesRejectsInvertedRange(t *testing.T) {
	e := New(nil, WithCommand("comp {frame}"))
	err := e.RenderFrames(context.Background(), project.FrameJob{First: 9, Last: 1, Step: 1}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderFramesStopsAtIntLimit(t *testing.T) {
	calls := setHelperCommand(t, "success")
	e := New(nil, WithCommand("comp {frame}"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cases := []struct {
		first, step int
		want        []string
	}{
		{first: math.MaxInt - 1, step: 5, want: []string{strconv.Itoa(math.MaxInt - 1)}},
		{first: math.MaxInt - 2, step: 1, want: []string{strconv.Itoa(math.MaxInt - 2), strconv.Itoa(math.MaxInt - 1), strconv.Itoa(math.MaxInt)}},
	}
	for _, tc := range cases {
		*calls = nil
		var last render.Progress
		job := project.FrameJob{Writer: "W", First: tc.first, Last: math.MaxInt, Step: tc.step}
		if err := e.RenderFrames(ctx, job, func(p render.Progress) { last = p }); err != nil {
			t.Fatalf("RenderFrames(%d..MaxInt step %d): %v", tc.first, tc.step, err)
		}
		var got []string
		for _, call := range *calls {
			got = append(got, call.args[0])
		}
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("frames %v, want %v", got, tc.want)
		}
		if last.Total != len(tc.want) || last.Done != len(tc.want) {
			t.Fatalf("unexpected final progress %+v", last)
		}
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("ENGINE_HELPER_MODE") {
	case "success":
		fmt.Println("frame written")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "write failed: disk quota exceeded")
		os.Exit(2)
	default:
		os.Exit(0)
	}
}
