package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"

	"natrender/internal/config"
	"natrender/internal/engine"
	"natrender/internal/logging"
	"natrender/internal/notifications"
	"natrender/internal/preflight"
	"natrender/internal/project"
	"natrender/internal/queue"
	"natrender/internal/render"
	"natrender/internal/renderproc"
	"natrender/internal/services"
)

// Daemon owns the loaded project, the dispatcher, the render journal and the
// notifier, and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	sessionID  string

	store      *queue.Store
	project    *project.Project
	dispatcher *render.Dispatcher
	notifier   *notifications.Observer

	renderer project.FrameRenderer
	runner   render.ProcessRunner
	sink     metrics.MetricSink
	service  notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool                 `json:"running"`
	PID         int                  `json:"pid"`
	SessionID   string               `json:"session_id"`
	Project     string               `json:"project"`
	ProjectName string               `json:"project_name"`
	Settings    render.Settings      `json:"settings"`
	Active      []render.Info        `json:"active"`
	Pending     []render.Info        `json:"pending"`
	JournalPath string               `json:"journal_path"`
	LockPath    string               `json:"lock_path"`
	History     map[queue.Status]int `json:"history"`
	Preflight   []preflight.Result   `json:"preflight"`
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithLogger sets the daemon logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConfigPath records the configuration file child renders should load.
func WithConfigPath(path string) Option {
	return func(d *Daemon) {
		d.configPath = strings.TrimSpace(path)
	}
}

// WithFrameRenderer replaces the in-process frame engine.
func WithFrameRenderer(renderer project.FrameRenderer) Option {
	return func(d *Daemon) {
		d.renderer = renderer
	}
}

// WithProcessRunner replaces the child process spawner.
func WithProcessRunner(runner render.ProcessRunner) Option {
	return func(d *Daemon) {
		d.runner = runner
	}
}

// WithMetricSink routes dispatcher metrics to sink.
func WithMetricSink(sink metrics.MetricSink) Option {
	return func(d *Daemon) {
		d.sink = sink
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(service notifications.Service) Option {
	return func(d *Daemon) {
		d.service = service
	}
}

// New loads the configured project and wires the dispatcher to the journal
// and notifier. The daemon does not accept renders until Start.
func New(cfg *config.Config, store *queue.Store, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	d := &Daemon{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewNop(),
		sessionID: uuid.NewString(),
		lockPath:  cfg.LockPath(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.lock = flock.New(d.lockPath)
	d.logger = logging.NewComponentLogger(d.logger, "daemon")

	if d.renderer == nil {
		d.renderer = engine.New(cfg, engine.WithLogger(d.logger))
	}
	if d.runner == nil {
		spawner, err := renderproc.New(cfg,
			renderproc.WithLogger(d.logger),
			renderproc.WithConfigPath(d.configPath),
		)
		if err != nil {
			return nil, err
		}
		d.runner = spawner
	}
	if d.service == nil {
		d.service = notifications.NewService(cfg)
	}

	projectPath := strings.TrimSpace(cfg.Paths.ProjectFile)
	if projectPath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "load project",
			"paths.project_file is not set", nil)
	}
	proj, err := project.Load(projectPath,
		project.WithRenderer(d.renderer),
		project.WithSnapshotDir(cfg.Paths.SnapshotDir),
	)
	if err != nil {
		return nil, err
	}
	d.project = proj

	d.notifier = notifications.NewObserver(d.service, d.logger)
	dispatcherOpts := []render.Option{
		render.WithLogger(d.logger),
		render.WithProcessRunner(d.runner),
		render.WithSettings(render.SettingsFromConfig(cfg)),
		render.WithSnapshotName(cfg.Render.SnapshotName),
		render.WithObserver(queue.NewRecorder(store, d.logger)),
		render.WithObserver(d.notifier),
	}
	if d.sink != nil {
		dispatcherOpts = append(dispatcherOpts, render.WithMetricSink(d.sink))
	}
	d.dispatcher = render.NewDispatcher(proj, dispatcherOpts...)
	return d, nil
}

// Start acquires the daemon lock, settles records left behind by a previous
// run and starts the dispatcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another natrender daemon instance is already running")
	}

	stale, err := d.store.FailStale(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to settle stale journal records", "journal_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run natrender history clear --all if the journal is corrupt"),
		)
	} else if stale > 0 {
		d.logger.Info("stale journal records marked failed",
			logging.Int64("count", stale),
			logging.String(logging.FieldEventType, "journal_recovered"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.dispatcher.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start dispatcher: %w", err)
	}
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()

	for _, result := range preflight.Failed(preflight.RunAll(d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "renders depending on this check will fail"),
		)
	}

	d.running.Store(true)
	d.logger.Info("natrender daemon started",
		logging.String("lock", d.lockPath),
		logging.String("project", d.project.Path()),
		logging.String("session_id", d.sessionID),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop cancels every render and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.running.Store(false)
	d.dispatcher.Stop()
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("natrender daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and flushes pending notifications. The store is
// owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	d.notifier.Close()
	return nil
}

// Running reports whether the daemon accepts renders.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Project returns the loaded project.
func (d *Daemon) Project() *project.Project {
	return d.project
}

// Dispatcher exposes the render dispatcher.
func (d *Daemon) Dispatcher() *render.Dispatcher {
	return d.dispatcher
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.dispatcher.Snapshot()
	status := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		SessionID:   d.sessionID,
		Project:     d.project.Path(),
		ProjectName: d.project.Name(),
		Settings:    d.dispatcher.Settings(),
		Active:      snap.Active,
		Pending:     snap.Pending,
		JournalPath: d.store.Path(),
		LockPath:    d.lockPath,
		Preflight:   preflight.RunAll(d.cfg),
	}
	history, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("journal stats unavailable", logging.Error(err))
	}
	status.History = history
	return status
}

// Submit schedules renders for the named writers. Blocking submissions run to
// completion on the daemon context.
func (d *Daemon) Submit(ctx context.Context, req render.SubmitRequest) (render.Submission, error) {
	runCtx, err := d.requestContext(ctx)
	if err != nil {
		return render.Submission{}, err
	}
	if _, ok := services.RequestIDFromContext(runCtx); !ok {
		runCtx = services.WithRequestID(runCtx, uuid.NewString())
	}
	return d.dispatcher.SubmitNames(runCtx, req)
}

// Cancel stops the active render or drops the pending one for writer.
func (d *Daemon) Cancel(writer string) error {
	if !d.running.Load() {
		return errNotRunning("cancel")
	}
	return d.dispatcher.Cancel(strings.TrimSpace(writer))
}

// Remove drops the pending render for writer.
func (d *Daemon) Remove(writer string) error {
	if !d.running.Load() {
		return errNotRunning("remove")
	}
	return d.dispatcher.Remove(strings.TrimSpace(writer))
}

// Settings returns the dispatch policy.
func (d *Daemon) Settings() render.Settings {
	return d.dispatcher.Settings()
}

// SetSettings replaces the dispatch policy for subsequent submissions. The
// daemon is never a background process.
func (d *Daemon) SetSettings(settings render.Settings) (render.Settings, error) {
	if settings.MaxParallel < 1 {
		return render.Settings{}, services.Wrap(services.ErrValidation, "daemon", "settings",
			"max_parallel must be at least 1", nil)
	}
	settings.Background = false
	d.dispatcher.SetSettings(settings)
	return settings, nil
}

// History lists journal records, newest first.
func (d *Daemon) History(ctx context.Context, limit int, statuses ...queue.Status) ([]*queue.Record, error) {
	return d.store.List(ctx, limit, statuses...)
}

// ClearHistory removes finished records, or every record when all is set.
// Clearing everything is refused while renders are in flight.
func (d *Daemon) ClearHistory(ctx context.Context, all bool) (int64, error) {
	if !all {
		return d.store.ClearFinished(ctx)
	}
	snap := d.dispatcher.Snapshot()
	if len(snap.Active)+len(snap.Pending) > 0 {
		return 0, services.Wrap(services.ErrValidation, "daemon", "clear history",
			"renders are in flight; cancel them first", nil)
	}
	return d.store.Clear(ctx)
}

func (d *Daemon) requestContext(ctx context.Context) (context.Context, error) {
	d.mu.Lock()
	runCtx := d.ctx
	d.mu.Unlock()
	if !d.running.Load() || runCtx == nil {
		return nil, errNotRunning("submit")
	}
	// Renders outlive the request that started them; only request values carry over.
	if ctx != nil {
		if id, ok := services.RequestIDFromContext(ctx); ok {
			runCtx = services.WithRequestID(runCtx, id)
		}
	}
	return runCtx, nil
}

func errNotRunning(op string) error {
	return services.Wrap(services.ErrConfiguration, "daemon", op, "daemon is not running", nil)
}
