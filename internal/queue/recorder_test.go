package queue_test

import (
	"context"
	"errors"
	"testing"

	"natrender/internal/project"
	"natrender/internal/queue"
	"natrender/internal/render"
	"natrender/internal/services"
	"natrender/internal/testsupport"
)

func TestRecorderJournalsEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recorder := queue.NewRecorder(store, nil)
	ctx := context.Background()

	info := sampleInfo("item-9", "Write9")
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventQueued, Item: info})
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventStarted, Item: info})
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventProgress, Item: info, Progress: render.Progress{Percent: 12.5}})
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventProgress, Item: info, Progress: render.Progress{Percent: 12.9}})

	record, err := store.Get(ctx, "item-9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != queue.StatusActive || record.ProgressPercent != 12.5 {
		t.Fatalf("unexpected record %+v", record)
	}

	failure := services.Wrap(services.ErrSpawn, "render", "spawn", "Write9", errors.New("exec: not found"))
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventFinished, Item: info, Err: failure})
	record, _ = store.Get(ctx, "item-9")
	if record.Status != queue.StatusFailed || record.ErrorKind != "spawn" {
		t.Fatalf("unexpected finished record %+v", record)
	}

	removed := sampleInfo("item-10", "Write10")
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventQueued, Item: removed})
	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventRemoved, Item: removed, Err: services.ErrCancelled})
	record, _ = store.Get(ctx, "item-10")
	if record.Status != queue.StatusCancelled {
		t.Fatalf("expected removed item to be cancelled, got %+v", record)
	}

	recorder.HandleRenderEvent(ctx, render.Event{Type: render.EventDrained})
}

type instantRenderer struct{}

func (instantRenderer) RenderFrames(_ context.Context, job project.FrameJob, progress func(render.Progress)) error {
	progress(render.Progress{Frame: job.Last, Done: 1, Total: 1, Percent: 100})
	return nil
}

func TestRecorderFollowsDispatcher(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProject(testsupport.SampleProject))
	store := testsupport.MustOpenStore(t, cfg)
	p, err := project.Load(cfg.Paths.ProjectFile, project.WithRenderer(instantRenderer{}))
	if err != nil {
		t.Fatalf("project.Load: %v", err)
	}

	d := render.NewDispatcher(p, render.WithObserver(queue.NewRecorder(store, nil)), render.WithMetricSink(nil))
	sub, err := d.SubmitNames(context.Background(), render.SubmitRequest{Writers: []string{"WriteB"}, Blocking: true})
	if err != nil {
		t.Fatalf("SubmitNames: %v", err)
	}
	if sub.Count(render.StatusCompleted) != 1 {
		t.Fatalf("expected one completed outcome, got %+v", sub.Outcomes)
	}

	record, err := store.Get(context.Background(), sub.Outcomes[0].Item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != queue.StatusCompleted || record.Writer != "WriteB" || record.Mode != "blocking" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.FirstFrame != 1 || record.LastFrame != 8 || record.FrameStep != 2 {
		t.Fatalf("expected declared writer range 1-8 step 2, got %+v", record)
	}
}
