package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Requirement defines an external command natrender relies on. Command is a
// full command line; only its executable is checked.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Binary      string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves the executable of every requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	argv, err := shellwords.Parse(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("unparsable command: %v", err)
		return status
	}
	if len(argv) == 0 {
		status.Detail = "command not configured"
		return status
	}
	status.Binary = argv[0]
	path, err := exec.LookPath(status.Binary)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Binary)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// MissingRequired returns the statuses of unavailable, non-optional binaries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
