package notify

import (
	"time"

	"github.com/google/uuid"
)

// Handle identifies a scheduled notification so it can be cancelled.
type Handle string

func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// Notifier delivers local alerts. Calls never fail from the caller's point of
// view; implementations log delivery problems.
type Notifier interface {
	ScheduleImmediate(title, body string)
	ScheduleAt(title, body string, at time.Time) Handle
	Cancel(h Handle)
	UpdatePersistent(stopsLeft *int, arrivalClock, label string)
	DismissPersistent()
}
