package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"

	"natrender/internal/logging"
)

const (
	completionBuffer    = 64
	defaultSnapshotName = "render_save.toml"
)

var errStopped = errors.New("dispatcher stopped")

// Dispatcher validates render batches and runs them under the configured
// policy.
type Dispatcher struct {
	project      Project
	runner       ProcessRunner
	logger       *slog.Logger
	sink         metrics.MetricSink
	registry     *Registry
	snapshotName string

	observersMu sync.RWMutex
	observers   []Observer

	mu        sync.RWMutex
	settings  Settings
	running   bool
	session   *session
	cancels   map[string]context.CancelFunc
	cancelled map[string]struct{}
	// snapshots counts the unsettled items of each out-of-process batch by
	// snapshot path.
	snapshots map[string]int
	renderWG  sync.WaitGroup
}

type session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	completions chan completion
	done        chan struct{}
}

type completion struct {
	item *QueueItem
	err  error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithProcessRunner sets the runner used for out-of-process renders.
func WithProcessRunner(runner ProcessRunner) Option {
	return func(d *Dispatcher) { d.runner = runner }
}

// WithObserver registers an observer at construction time.
func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		if observer != nil {
			d.observers = append(d.observers, observer)
		}
	}
}

// WithMetricSink chooses where dispatcher metrics go. A nil sink discards
// them.
func WithMetricSink(sink metrics.MetricSink) Option {
	return func(d *Dispatcher) {
		if sink == nil {
			sink = &metrics.BlackholeSink{}
		}
		d.sink = sink
	}
}

// WithSettings sets the initial dispatch policy.
func WithSettings(settings Settings) Option {
	return func(d *Dispatcher) { d.settings = settings }
}

// WithSnapshotName sets the file name used for project snapshots.
func WithSnapshotName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.snapshotName = name
		}
	}
}

// NewDispatcher constructs a dispatcher for project.
func NewDispatcher(project Project, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		project:      project,
		logger:       logging.NewNop(),
		registry:     NewRegistry(),
		snapshotName: defaultSnapshotName,
		settings:     Settings{Queuing: true, MaxParallel: 1},
		cancels:      make(map[string]context.CancelFunc),
		cancelled:    make(map[string]struct{}),
		snapshots:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sink == nil {
		d.sink = metrics.Default()
	}
	d.logger = logging.NewComponentLogger(d.logger, "dispatcher")
	return d
}

// AddObserver registers an additional observer.
func (d *Dispatcher) AddObserver(observer Observer) {
	if observer == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, observer)
	d.observersMu.Unlock()
}

// Settings returns the current dispatch policy.
func (d *Dispatcher) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// SetSettings replaces the dispatch policy for subsequent submissions.
func (d *Dispatcher) SetSettings(settings Settings) {
	d.mu.Lock()
	d.settings = settings
	d.mu.Unlock()
	d.logger.Info("render settings updated",
		logging.Bool("separate_process", settings.SeparateProcess),
		logging.Bool("queuing", settings.Queuing),
		logging.Bool("background", settings.Background),
		logging.Int("max_parallel", settings.MaxParallel),
	)
}

// Snapshot copies the registry state.
func (d *Dispatcher) Snapshot() RegistrySnapshot {
	return d.registry.Snapshot()
}

// Registry exposes the active/pending registry for inspection.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Running reports whether the reconcile loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Start launches the reconcile loop that turns completions into promotions.
// Asynchronous submissions require a started dispatcher.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:         runCtx,
		cancel:      cancel,
		completions: make(chan completion, completionBuffer),
		done:        make(chan struct{}),
	}
	d.session = s
	d.running = true
	go d.reconcile(s)
	d.logger.Debug("dispatcher started")
	return nil
}

// Stop cancels every running render, blocking ones included, waits for their
// completions to be reconciled and cancels whatever is still pending.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	s := d.session
	d.mu.Unlock()

	s.cancel()
	d.renderWG.Wait()
	close(s.completions)
	<-s.done

	for _, item := range d.registry.drainPending() {
		d.releaseSnapshot(item)
		d.emit(s.ctx, Event{Type: EventRemoved, Item: item.info(), Err: cancelledError("dispatcher stopped")})
	}
	d.recordGauges()
	d.logger.Debug("dispatcher stopped")
}

func (d *Dispatcher) reconcile(s *session) {
	defer close(s.done)
	for c := range s.completions {
		d.settle(c.item, c.err)
	}
}

func (d *Dispatcher) eventContext() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session != nil {
		return d.session.ctx
	}
	return context.Background()
}

// emit fans event out to every observer. Observers see a context that is
// never cancelled so a stopping dispatcher can still record outcomes.
func (d *Dispatcher) emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	ctx = context.WithoutCancel(ctx)

	d.observersMu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.observersMu.RUnlock()
	for _, observer := range observers {
		observer.HandleRenderEvent(ctx, event)
	}
}
