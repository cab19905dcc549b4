package render

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"natrender/internal/logging"
	"natrender/internal/services"
)

// saveSnapshot writes the project snapshot shared by one out-of-process
// batch and binds it to items.
func (d *Dispatcher) saveSnapshot(ctx context.Context, items []*QueueItem) error {
	path, err := d.project.SaveSnapshot(ctx, d.snapshotName)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "snapshot", "save project snapshot", err)
	}
	for _, item := range items {
		item.SavePath = path
	}
	logging.WithContext(ctx, d.logger).Debug("project snapshot saved", logging.String("path", path))
	return nil
}

// holdSnapshot takes one reference on path per item of a batch about to be
// admitted.
func (d *Dispatcher) holdSnapshot(path string, items int) {
	if path == "" || items <= 0 {
		return
	}
	d.mu.Lock()
	d.snapshots[path] += items
	d.mu.Unlock()
}

// releaseSnapshot drops item's reference and removes the snapshot once the
// last item of its batch has settled or left the queue.
func (d *Dispatcher) releaseSnapshot(item *QueueItem) {
	if item == nil {
		return
	}
	d.dropSnapshotRefs(item.SavePath, 1)
}

func (d *Dispatcher) dropSnapshotRefs(path string, n int) {
	if path == "" || n <= 0 {
		return
	}
	d.mu.Lock()
	left, ok := d.snapshots[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	if left > n {
		d.snapshots[path] = left - n
		d.mu.Unlock()
		return
	}
	delete(d.snapshots, path)
	d.mu.Unlock()
	d.removeSnapshot(path)
}

func (d *Dispatcher) removeSnapshot(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(d.logger, "project snapshot not removed", "snapshot_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale snapshot left in snapshot_dir"),
		)
		return
	}
	d.logger.Debug("project snapshot removed", logging.String("path", path))
}
