package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"natrender/internal/config"
	"natrender/internal/logging"
	"natrender/internal/project"
	"natrender/internal/render"
	"natrender/internal/services"
)

var commandContext = exec.CommandContext

const outputTailLimit = 512

// Engine renders frames by running an external command per frame.
type Engine struct {
	command string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCommand overrides the frame command template.
func WithCommand(command string) Option {
	return func(e *Engine) { e.command = strings.TrimSpace(command) }
}

// New constructs an engine from configuration.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop(), now: time.Now}
	if cfg != nil {
		e.command = strings.TrimSpace(cfg.Render.FrameCommand)
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// RenderFrames renders job.First..job.Last by job.Step, one command per frame.
func (e *Engine) RenderFrames(ctx context.Context, job project.FrameJob, progress func(render.Progress)) error {
	if e.command == "" {
		return services.Wrap(services.ErrConfiguration, "engine", "render", "render.frame_command is not configured", nil)
	}
	template, err := shellwords.Parse(e.command)
	if err != nil || len(template) == 0 {
		return services.Wrap(services.ErrConfiguration, "engine", "render", "parse frame command", err)
	}
	step := max(1, job.Step)
	if job.First > job.Last {
		return services.Wrap(services.ErrValidation, "engine", "render",
			fmt.Sprintf("frame range %d-%d is inverted", job.First, job.Last), nil)
	}
	// Distances are taken as uint so ranges near the int limits neither
	// overflow nor loop forever.
	total := int((uint(job.Last)-uint(job.First))/uint(step)) + 1

	ctx = services.WithWriter(services.WithItemID(ctx, job.ItemID), job.Writer)
	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("frame render starting",
		logging.Range(job.First, job.Last, step),
		logging.String("output", job.Output),
	)

	start := e.now()
	var slowest time.Duration
	done := 0
	for frame := job.First; ; frame += step {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "engine", "render",
				fmt.Sprintf("stopped before frame %d", frame), err)
		}
		frameStart := e.now()
		if err := e.renderFrame(ctx, template, job, frame); err != nil {
			return err
		}
		elapsed := e.now().Sub(frameStart)
		slowest = max(slowest, elapsed)
		done++
		if job.Stats {
			logger.Info("frame rendered",
				logging.Int("frame", frame),
				logging.Duration("elapsed", elapsed),
			)
		}
		if progress != nil {
			progress(render.Progress{
				Frame:   frame,
				Done:    done,
				Total:   total,
				Percent: float64(done) * 100 / float64(total),
				Elapsed: e.now().Sub(start),
			})
		}
		if uint(job.Last)-uint(frame) < uint(step) {
			break
		}
	}

	if job.Stats {
		elapsed := e.now().Sub(start)
		logger.Info("render statistics",
			logging.Int("frames", done),
			logging.Duration("elapsed", elapsed),
			logging.Duration("average", elapsed/time.Duration(max(1, done))),
			logging.Duration("slowest", slowest),
		)
	}
	return nil
}

func (e *Engine) renderFrame(ctx context.Context, template []string, job project.FrameJob, frame int) error {
	args := expandArgs(template, map[string]string{
		"frame":   strconv.Itoa(frame),
		"output":  OutputPath(job.Output, frame),
		"writer":  job.Writer,
		"project": job.Project,
	})
	cmd := commandContext(ctx, args[0], args[1:]...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "engine", "render",
				fmt.Sprintf("frame %d interrupted", frame), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return services.Wrap(services.ErrExternalTool, "engine", "render",
				fmt.Sprintf("frame %d: %s", frame, tail(output.String())), err)
		}
		return services.Wrap(services.ErrSpawn, "engine", "render",
			fmt.Sprintf("frame %d: start %s", frame, args[0]), err)
	}
	return nil
}

func tail(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "no output"
	}
	if len(text) > outputTailLimit {
		text = "..." + text[len(text)-outputTailLimit:]
	}
	return text
}

var _ project.FrameRenderer = (*Engine)(nil)
