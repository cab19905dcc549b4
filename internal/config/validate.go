package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SnapshotDir) == "" {
		return errors.New("paths.snapshot_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.MaxParallel <= 0 {
		return errors.New("render.max_parallel must be positive")
	}
	if strings.ContainsAny(c.Render.SnapshotName, `/\`) {
		return fmt.Errorf("render.snapshot_name must be a file name, got %q", c.Render.SnapshotName)
	}
	for key, command := range map[string]string{
		"render.frame_command":   c.Render.FrameCommand,
		"render.process_command": c.Render.ProcessCommand,
	} {
		if command == "" {
			continue
		}
		if _, err := shellwords.Parse(command); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
