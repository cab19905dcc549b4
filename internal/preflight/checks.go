package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"natrender/internal/config"
	"natrender/internal/deps"
	"natrender/internal/project"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProject verifies that the configured project parses and declares at
// least one output node.
func CheckProject(path string) Result {
	const name = "Project"

	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Passed: true, Detail: "not configured"}
	}
	p, err := project.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	writers := len(p.Writers())
	if writers == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no writer nodes)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d writers)", path, writers)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Frame renderer",
			Command:     cfg.Render.FrameCommand,
			Description: "Runs render.frame_command for in-process renders",
		},
	}
	if command := cfg.Render.ProcessCommand; command != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Child renderer",
			Command:     command,
			Description: "Runs out-of-process renders (render.process_command)",
			Optional:    !cfg.Render.SeparateProcess,
		})
	}
	return deps.CheckBinaries(requirements)
}
