package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"natrender/internal/logging"
	"natrender/internal/services"
)

func cancelledError(reason string) error {
	return services.Wrap(services.ErrCancelled, "render", "cancel", reason, nil)
}

// launch starts an item that the registry already made active. A returned
// error means nothing is running for the item and the caller must settle it.
func (d *Dispatcher) launch(item *QueueItem) error {
	d.mu.Lock()
	if !d.running || d.session == nil {
		d.mu.Unlock()
		return cancelledError("dispatcher stopped")
	}
	s := d.session
	ctx, cancel := context.WithCancel(s.ctx)
	ctx = services.WithWriter(services.WithItemID(ctx, item.ID), item.Writer())
	d.cancels[item.ID] = cancel
	d.renderWG.Add(1)
	d.mu.Unlock()

	if item.Mode == ModeProcess {
		if d.runner == nil {
			d.renderWG.Done()
			d.forget(item.ID)
			return services.Wrap(services.ErrConfiguration, "render", "spawn", "no process runner configured", nil)
		}
		handle, err := d.runner.Start(ctx, ProcessSpec{
			ItemID:      item.ID,
			ProjectPath: item.SavePath,
			Writer:      item.Writer(),
			Range:       item.Range,
			Stats:       item.Work.Stats,
			Progress:    d.progressFunc(ctx, item),
		})
		if err != nil {
			d.renderWG.Done()
			d.forget(item.ID)
			if errors.Is(err, services.ErrSpawn) {
				return err
			}
			return services.Wrap(services.ErrSpawn, "render", "spawn", item.Writer(), err)
		}
		d.registry.Attach(item, handle)
		d.announceStart(ctx, item)
		go func() {
			defer d.renderWG.Done()
			err := <-handle.Done()
			s.completions <- completion{item: item, err: err}
		}()
		return nil
	}

	d.announceStart(ctx, item)
	go func() {
		defer d.renderWG.Done()
		err := item.Work.Writer.Render(ctx, item.request(), d.progressFunc(ctx, item))
		s.completions <- completion{item: item, err: err}
	}()
	return nil
}

// settle records the end of item, promotes the pending head and starts it.
// Promoted items that cannot start are settled in turn.
func (d *Dispatcher) settle(item *QueueItem, err error) {
	for item != nil {
		err = d.classify(item, err)
		info := d.registry.Info(item)
		done := d.registry.Complete(item)
		d.releaseSnapshot(item)
		d.finished(d.eventContext(), info, err)
		if done.Drained {
			d.emit(d.eventContext(), Event{Type: EventDrained})
			d.logger.Info("render queue drained", logging.String(logging.FieldEventType, "queue_drained"))
		}
		d.recordGauges()

		item, err = done.Next, nil
		if item == nil {
			return
		}
		if err = d.launch(item); err == nil {
			return
		}
	}
}

// classify tags cancellation consistently and forgets per-item state.
func (d *Dispatcher) classify(item *QueueItem, err error) error {
	d.mu.Lock()
	_, userCancelled := d.cancelled[item.ID]
	delete(d.cancelled, item.ID)
	if cancel, ok := d.cancels[item.ID]; ok {
		cancel()
		delete(d.cancels, item.ID)
	}
	d.mu.Unlock()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrCancelled):
		return err
	case userCancelled:
		return services.Wrap(services.ErrCancelled, "render", "cancel", "cancelled by request", err)
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "render", "cancel", "dispatcher stopped", err)
	default:
		return err
	}
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	if cancel, ok := d.cancels[id]; ok {
		cancel()
		delete(d.cancels, id)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) announceStart(ctx context.Context, item *QueueItem) {
	info := d.registry.Info(item)
	eventType := EventStarted
	if item.Work.Restart {
		eventType = EventRestarted
	}
	d.emit(ctx, Event{Type: eventType, Item: info})
	d.sink.IncrCounterWithLabels(MetricRenderStarted, 1, modeLabel(item.Mode))
	d.recordGauges()
	logging.WithContext(ctx, d.logger).Info("render "+string(eventType),
		logging.String(logging.FieldEventType, "render_"+string(eventType)),
		logging.String("sequence", info.SequenceName),
		logging.Range(info.Range.First, info.Range.Last, info.Range.Step),
		logging.String("mode", string(info.Mode)),
		logging.Bool("pausable", info.Pausable),
		logging.Int("pid", info.PID),
	)
}

func (d *Dispatcher) finished(ctx context.Context, info Info, err error) {
	d.emit(ctx, Event{Type: EventFinished, Item: info, Err: err})
	elapsed := time.Duration(0)
	if !info.StartedAt.IsZero() {
		elapsed = time.Since(info.StartedAt)
		d.sink.AddSampleWithLabels(MetricRenderDuration, float32(elapsed.Seconds()), modeLabel(info.Mode))
	}
	logger := d.logger.With(
		logging.String(logging.FieldWriter, info.Writer),
		logging.String(logging.FieldItemID, info.ID),
	)
	switch {
	case err == nil:
		d.sink.IncrCounterWithLabels(MetricRenderFinished, 1, modeLabel(info.Mode))
		logger.Info("render finished",
			logging.String(logging.FieldEventType, "render_finished"),
			logging.Duration("elapsed", elapsed),
		)
	case errors.Is(err, services.ErrCancelled):
		d.sink.IncrCounterWithLabels(MetricRenderFailed, 1, modeLabel(info.Mode))
		logging.WarnWithContext(logger, "render cancelled", "render_cancelled",
			logging.Error(err),
			logging.String(logging.FieldImpact, "output sequence is incomplete"),
		)
	default:
		d.sink.IncrCounterWithLabels(MetricRenderFailed, 1, modeLabel(info.Mode))
		logging.ErrorWithContext(logger, "render failed", "render_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Kind(err)),
		)
	}
}

func (d *Dispatcher) progressFunc(ctx context.Context, item *QueueItem) func(Progress) {
	sampler := logging.NewProgressSampler(10)
	logger := logging.WithContext(ctx, d.logger)
	return func(p Progress) {
		d.emit(ctx, Event{Type: EventProgress, Item: d.registry.Info(item), Progress: p})
		if sampler.ShouldLog(p.Percent) {
			logger.Debug("render progress",
				logging.Int("frame", p.Frame),
				logging.Int("done", p.Done),
				logging.Int("total", p.Total),
				logging.Float64("percent", p.Percent),
			)
		}
	}
}

// Remove drops the pending render for writer before it starts.
func (d *Dispatcher) Remove(writer string) error {
	item, ok := d.registry.Remove(writer)
	if !ok {
		return services.Wrap(services.ErrNotFound, "render", "remove",
			fmt.Sprintf("no pending render for %s", writer), nil)
	}
	d.releaseSnapshot(item)
	d.emit(d.eventContext(), Event{Type: EventRemoved, Item: item.info(), Err: cancelledError("removed from queue")})
	d.recordGauges()
	d.logger.Info("pending render removed",
		logging.String(logging.FieldWriter, writer),
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldEventType, "render_removed"),
	)
	return nil
}

// Cancel removes a pending render for writer or stops its active one. An
// active render reports its completion through the normal path.
func (d *Dispatcher) Cancel(writer string) error {
	if err := d.Remove(writer); err == nil {
		return nil
	}
	item, ok := d.registry.Active(writer)
	if !ok {
		return services.Wrap(services.ErrNotFound, "render", "cancel",
			fmt.Sprintf("no render for %s", writer), nil)
	}

	d.mu.Lock()
	d.cancelled[item.ID] = struct{}{}
	cancel := d.cancels[item.ID]
	d.mu.Unlock()

	handle := d.registry.processOf(item)

	d.logger.Info("cancelling active render",
		logging.String(logging.FieldWriter, writer),
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldEventType, "render_cancel_requested"),
	)
	if handle != nil {
		if err := handle.Terminate(); err != nil {
			return services.Wrap(services.ErrExternalTool, "render", "cancel", "terminate child render", err)
		}
		return nil
	}
	if cancel != nil {
		cancel()
	}
	return nil
}
