package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleProject is a small project with two image writers, a video writer
// and a non-output node.
const SampleProject = `
[project]
name = "shot010"
first_frame = 1
last_frame = 24

[[nodes]]
name = "Read1"
kind = "read"

[[nodes]]
name = "WriteA"
kind = "writer"
file = "/renders/a.####.exr"

[[nodes]]
name = "WriteB"
kind = "writer"
file = "/renders/b.%04d.png"
first_frame = 1
last_frame = 8
frame_step = 2

[[nodes]]
name = "Movie"
kind = "writer"
file = "/renders/shot010.mov"
video = true
`

// WriteProject writes a project document to path, creating parent
// directories.
func WriteProject(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
