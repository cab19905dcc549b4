package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"natrender/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckProject(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	testsupport.WriteProject(t, good, testsupport.SampleProject)
	result := CheckProject(good)
	if !result.Passed || !strings.Contains(result.Detail, "3 writers") {
		t.Fatalf("expected pass with 3 writers, got %+v", result)
	}

	empty := filepath.Join(dir, "empty.toml")
	testsupport.WriteProject(t, empty, "[project]\nfirst_frame = 1\nlast_frame = 2\n")
	if result := CheckProject(empty); result.Passed {
		t.Fatal("expected failure for project without writers")
	}

	if result := CheckProject(filepath.Join(dir, "missing.toml")); result.Passed {
		t.Fatal("expected failure for missing project")
	}
	if result := CheckProject(""); !result.Passed {
		t.Fatal("unconfigured project should not fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("natron-frame"),
		testsupport.WithFrameCommand("natron-frame --frame {frame} --out {output}"),
		testsupport.WithProject(testsupport.SampleProject),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsMissingFrameRenderer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameCommand("clearly-not-present-renderer {frame}"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Render.ProcessCommand = "clearly-not-present-child"
	cfg.Render.SeparateProcess = false

	failed := Failed(RunAll(cfg))
	if len(failed) != 1 || failed[0].Name != "Frame renderer" {
		t.Fatalf("expected only the frame renderer to fail, got %+v", failed)
	}
}
