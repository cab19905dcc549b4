package render

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"natrender/internal/logging"
	"natrender/internal/services"
)

// runBlocking renders items in this goroutine's lifetime. Items are grouped
// by writer and each group runs its items in order; groups share a pool
// bounded by MaxParallel. Every item is admitted to the registry as active
// just before it renders, so a writer that is already active or pending is
// rejected. done is called once per item from the worker that handled it.
func (d *Dispatcher) runBlocking(ctx context.Context, items []*QueueItem, settings Settings, done func(Outcome)) {
	var (
		order  []string
		groups = make(map[string][]*QueueItem)
	)
	for _, item := range items {
		name := item.Writer()
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], item)
	}

	var g errgroup.Group
	g.SetLimit(settings.poolSize(len(order)))
	for _, name := range order {
		group := groups[name]
		g.Go(func() error {
			for _, item := range group {
				done(d.renderBlocking(ctx, item))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) renderBlocking(parent context.Context, item *QueueItem) Outcome {
	// Registered before admission: an active blocking item always has a
	// cancel function.
	ctx, release := d.trackBlocking(parent, item)
	defer release()

	admission := d.registry.Admit([]*QueueItem{item}, false)
	if len(admission.Start) == 0 {
		d.forget(item.ID)
		rejection := admission.Rejected[0]
		d.reject(parent, rejection.Info, rejection.Err)
		return Outcome{Item: rejection.Info, Status: StatusRejected, Err: rejection.Err}
	}

	var err error
	if err = ctx.Err(); err != nil {
		err = services.Wrap(services.ErrCancelled, "render", "blocking", "cancelled before start", err)
	} else {
		d.announceStart(ctx, item)
		err = item.Work.Writer.Render(ctx, item.request(), d.progressFunc(ctx, item))
		if err != nil && parent.Err() != nil && errors.Is(err, context.Canceled) && !errors.Is(err, services.ErrCancelled) {
			err = services.Wrap(services.ErrCancelled, "render", "blocking", "interrupted", err)
		}
	}
	err = d.classify(item, err)
	info := d.registry.Info(item)
	d.settle(item, err)
	logging.WithContext(ctx, d.logger).Debug("blocking render returned", logging.Bool("ok", err == nil))

	if err != nil {
		return Outcome{Item: info, Status: StatusFailed, Err: err}
	}
	return Outcome{Item: info, Status: StatusCompleted}
}

// trackBlocking gives a blocking item a cancel function reachable from
// Cancel. While the reconcile loop runs, Stop also cancels the render and
// waits for it. release must be called once the item is settled or rejected.
func (d *Dispatcher) trackBlocking(parent context.Context, item *QueueItem) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	ctx = services.WithWriter(services.WithItemID(ctx, item.ID), item.Writer())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels[item.ID] = cancel
	if !d.running || d.session == nil {
		return ctx, cancel
	}
	d.renderWG.Add(1)
	unhook := context.AfterFunc(d.session.ctx, cancel)
	return ctx, func() {
		unhook()
		cancel()
		d.renderWG.Done()
	}
}
