package queue

import (
	"errors"

	"natrender/internal/services"
)

// ErrNotFound is returned when a journal record does not exist.
var ErrNotFound = errors.New("journal record not found")

// FinishStatus maps a render result to the status the journal persists.
// Cancellation is kept apart from failure so history views can tell a
// stopped render from a broken one.
func FinishStatus(err error) Status {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, services.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
