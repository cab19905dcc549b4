package renderproc

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"natrender/internal/render"
)

// ProgressWriter returns a progress callback that writes one JSON object per
// line to w. Child renders use it with --progress-json.
func ProgressWriter(w io.Writer) func(render.Progress) {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(p render.Progress) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(p)
	}
}

// scanProgress forwards every JSON progress line from r to progress.
// Lines that are not progress objects are ignored.
func scanProgress(r io.Reader, progress func(render.Progress)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var update render.Progress
		if err := json.Unmarshal(line, &update); err != nil {
			continue
		}
		if progress != nil {
			progress(update)
		}
	}
	return scanner.Err()
}
