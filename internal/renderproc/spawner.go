package renderproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"natrender/internal/config"
	"natrender/internal/logging"
	"natrender/internal/render"
	"natrender/internal/services"
)

var (
	commandContext = exec.CommandContext
	executable     = os.Executable
)

const (
	terminateGrace = 10 * time.Second
	stderrLimit    = 2048
)

// Spawner starts child renders. It satisfies render.ProcessRunner.
type Spawner struct {
	binary     string
	prefix     []string
	configPath string
	logger     *slog.Logger
}

// Option configures a Spawner.
type Option func(*Spawner)

// WithLogger sets the spawner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spawner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfigPath forwards an explicit configuration file to children.
func WithConfigPath(path string) Option {
	return func(s *Spawner) { s.configPath = strings.TrimSpace(path) }
}

// New builds a spawner. The child binary is render.process_command when set,
// otherwise the running executable.
func New(cfg *config.Config, opts ...Option) (*Spawner, error) {
	s := &Spawner{logger: logging.NewNop()}
	command := ""
	if cfg != nil {
		command = strings.TrimSpace(cfg.Render.ProcessCommand)
	}
	if command != "" {
		argv, err := shellwords.Parse(command)
		if err != nil || len(argv) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "renderproc", "init", "parse render.process_command", err)
		}
		s.binary, s.prefix = argv[0], argv[1:]
	} else {
		self, err := executable()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "renderproc", "init", "resolve executable", err)
		}
		s.binary = self
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "renderproc")
	return s, nil
}

// Binary returns the child executable.
func (s *Spawner) Binary() string {
	return s.binary
}

// Args builds the child command line for spec.
func (s *Spawner) Args(spec render.ProcessSpec) []string {
	args := append([]string(nil), s.prefix...)
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	args = append(args,
		"render",
		"--background",
		"--progress-json",
		"--project", spec.ProjectPath,
		"--writer", spec.Writer,
		"--range", fmt.Sprintf("%d-%d", spec.Range.First, spec.Range.Last),
		"--step", strconv.Itoa(spec.Range.Step),
	)
	if spec.Stats {
		args = append(args, "--stats")
	}
	return args
}

// Start launches the child render described by spec.
func (s *Spawner) Start(ctx context.Context, spec render.ProcessSpec) (render.ProcessHandle, error) {
	if strings.TrimSpace(spec.ProjectPath) == "" {
		return nil, services.Wrap(services.ErrSpawn, "renderproc", "start", "project snapshot path is empty", nil)
	}
	args := s.Args(spec)
	cmd := commandContext(ctx, s.binary, args...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = terminateGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSpawn, "renderproc", "start", "stdout pipe", err)
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrSpawn, "renderproc", "start", s.binary, err)
	}

	h := &Handle{
		pid:  cmd.Process.Pid,
		done: make(chan error, 1),
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("child render started",
		logging.Int("pid", h.pid),
		logging.String("project", spec.ProjectPath),
		logging.String(logging.FieldEventType, "child_started"),
	)

	go func() {
		scanErr := scanProgress(stdout, spec.Progress)
		waitErr := cmd.Wait()
		h.done <- s.exitResult(spec, waitErr, scanErr, stderr.String())
		close(h.done)
		logger.Debug("child render exited", logging.Int("pid", h.pid), logging.Bool("ok", waitErr == nil))
	}()
	return h, nil
}

func (s *Spawner) exitResult(spec render.ProcessSpec, waitErr, scanErr error, stderr string) error {
	if waitErr == nil {
		if scanErr != nil {
			s.logger.Warn("child progress stream failed", logging.Error(scanErr))
		}
		return nil
	}
	detail := fmt.Sprintf("child render of %s failed", spec.Writer)
	if text := strings.TrimSpace(stderr); text != "" {
		detail += ": " + text
	}
	return services.Wrap(services.ErrExternalTool, "renderproc", "wait", detail, waitErr)
}

// Handle tracks one child render.
type Handle struct {
	pid  int
	done chan error
}

// PID returns the child process ID.
func (h *Handle) PID() int { return h.pid }

// Done delivers the exit result once, then closes.
func (h *Handle) Done() <-chan error { return h.done }

// Terminate asks the child to stop with SIGTERM.
func (h *Handle) Terminate() error {
	if err := unix.Kill(h.pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal pid %d: %w", h.pid, err)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var (
	_ render.ProcessRunner = (*Spawner)(nil)
	_ render.ProcessHandle = (*Handle)(nil)
)
