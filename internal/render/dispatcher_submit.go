package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"natrender/internal/logging"
	"natrender/internal/services"
)

// Status is the per-item result of a submission.
type Status string

const (
	StatusStarted   Status = "started"
	StatusQueued    Status = "queued"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome reports what happened to one submitted Work.
type Outcome struct {
	Item   Info   `json:"item"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Submission collects the outcomes of one Submit call in input order.
// Asynchronous submissions report started/queued/rejected; blocking ones
// report completed/failed/rejected.
type Submission struct {
	Outcomes []Outcome
}

// Count returns how many outcomes have status.
func (s Submission) Count(status Status) int {
	n := 0
	for _, outcome := range s.Outcomes {
		if outcome.Status == status {
			n++
		}
	}
	return n
}

// Err joins every rejection and failure.
func (s Submission) Err() error {
	var errs []error
	for _, outcome := range s.Outcomes {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}
	return errors.Join(errs...)
}

// FrameSpan is a requested frame range; any field may be Unspecified.
type FrameSpan struct {
	First int `json:"first"`
	Last  int `json:"last"`
	Step  int `json:"step"`
}

// SubmitRequest names writers of the project to render.
type SubmitRequest struct {
	// Writers lists node names. Empty means every writer of the project.
	Writers []string
	// Ranges produces one Work per span and writer. Empty means one fully
	// unspecified Work per writer.
	Ranges   []FrameSpan
	Stats    bool
	Restart  bool
	Blocking bool
}

// ResolveWorks turns writer names into Work values. It fails with
// ErrInvalidArgument before anything is scheduled.
func ResolveWorks(project Project, req SubmitRequest) ([]Work, error) {
	if project == nil {
		return nil, services.Wrap(services.ErrInvalidArgument, "render", "resolve", "no project loaded", nil)
	}
	var writers []Writer
	if len(req.Writers) == 0 {
		writers = project.Writers()
		if len(writers) == 0 {
			return nil, services.Wrap(services.ErrInvalidArgument, "render", "resolve", "project has no writer node", nil)
		}
	} else {
		for _, raw := range req.Writers {
			name := strings.TrimSpace(raw)
			node, ok := project.Node(name)
			if !ok {
				return nil, services.Wrap(services.ErrInvalidArgument, "render", "resolve",
					fmt.Sprintf("%s does not belong to the project", name), nil)
			}
			writer, ok := node.Writer()
			if !ok {
				return nil, services.Wrap(services.ErrInvalidArgument, "render", "resolve",
					fmt.Sprintf("%s is not an output node", name), nil)
			}
			writers = append(writers, writer)
		}
	}

	works := make([]Work, 0, len(writers)*max(1, len(req.Ranges)))
	for _, writer := range writers {
		base := NewWork(writer)
		base.Stats = req.Stats
		base.Restart = req.Restart
		if len(req.Ranges) == 0 {
			works = append(works, base)
			continue
		}
		for _, span := range req.Ranges {
			works = append(works, base.WithRange(span.First, span.Last, span.Step))
		}
	}
	return works, nil
}

// SubmitNames resolves writer names against the project and submits them.
// Name resolution errors abort the whole request with ErrInvalidArgument.
func (d *Dispatcher) SubmitNames(ctx context.Context, req SubmitRequest) (Submission, error) {
	works, err := ResolveWorks(d.project, req)
	if err != nil {
		return Submission{}, err
	}
	return d.Submit(ctx, works, req.Blocking)
}

// Submit validates works and schedules them. Blocking (or a background
// dispatcher) runs everything before returning; otherwise items are started
// or queued according to the current settings. Items failing validation, or
// naming a writer that is already active or pending, are rejected
// individually. An empty batch is a no-op.
func (d *Dispatcher) Submit(ctx context.Context, works []Work, blocking bool) (Submission, error) {
	settings := d.Settings()
	blocking = blocking || settings.Background
	logger := logging.WithContext(ctx, d.logger)

	mode := ModeInProcess
	switch {
	case blocking:
		mode = ModeBlocking
	case settings.SeparateProcess:
		mode = ModeProcess
	}

	var (
		sub   Submission
		items []*QueueItem
		index = make(map[string]int, len(works))
	)
	for _, work := range works {
		rng, err := Validate(work, d.project)
		if err != nil {
			info := rejectedInfo(work)
			sub.Outcomes = append(sub.Outcomes, Outcome{Item: info, Status: StatusRejected, Err: err})
			d.reject(ctx, info, err)
			continue
		}
		item := NewQueueItem(work, rng, mode)
		index[item.ID] = len(sub.Outcomes)
		sub.Outcomes = append(sub.Outcomes, Outcome{Item: item.info()})
		items = append(items, item)
	}
	if len(items) == 0 {
		return sub, nil
	}

	if blocking {
		d.runBlocking(ctx, items, settings, func(outcome Outcome) {
			sub.Outcomes[index[outcome.Item.ID]] = outcome
		})
		return sub, nil
	}

	if !d.Running() {
		return Submission{}, services.Wrap(services.ErrConfiguration, "render", "submit", "dispatcher not started", nil)
	}

	if mode == ModeProcess {
		if err := d.saveSnapshot(ctx, items); err != nil {
			return Submission{}, err
		}
		d.holdSnapshot(items[0].SavePath, len(items))
	}
	admission := d.registry.Admit(items, settings.Queuing)
	if mode == ModeProcess {
		// A batch with nothing admitted removes its snapshot here.
		d.dropSnapshotRefs(items[0].SavePath, len(admission.Rejected))
	}
	for _, rejection := range admission.Rejected {
		sub.Outcomes[index[rejection.Info.ID]] = Outcome{Item: rejection.Info, Status: StatusRejected, Err: rejection.Err}
		d.reject(ctx, rejection.Info, rejection.Err)
	}
	for _, item := range admission.Queued {
		info := d.registry.Info(item)
		sub.Outcomes[index[item.ID]] = Outcome{Item: info, Status: StatusQueued}
		d.emit(ctx, Event{Type: EventQueued, Item: info})
		d.sink.IncrCounter(MetricRenderQueued, 1)
		logger.Info("render queued",
			logging.String(logging.FieldWriter, info.Writer),
			logging.String(logging.FieldItemID, info.ID),
			logging.String(logging.FieldEventType, "render_queued"),
		)
	}
	d.recordGauges()
	for _, item := range admission.Start {
		sub.Outcomes[index[item.ID]] = Outcome{Item: d.registry.Info(item), Status: StatusStarted}
		if err := d.launch(item); err != nil {
			outcome := &sub.Outcomes[index[item.ID]]
			outcome.Status, outcome.Err = StatusFailed, err
			d.settle(item, err)
		}
	}
	return sub, nil
}

func (d *Dispatcher) reject(ctx context.Context, info Info, err error) {
	d.emit(ctx, Event{Type: EventRejected, Item: info, Err: err})
	d.sink.IncrCounter(MetricRenderRejected, 1)
	logging.WarnWithContext(logging.WithContext(ctx, d.logger), "render rejected", "render_rejected",
		logging.String(logging.FieldWriter, info.Writer),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Kind(err)),
		logging.String(logging.FieldImpact, "writer not rendered"),
	)
}
