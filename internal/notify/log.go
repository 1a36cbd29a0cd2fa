package notify

import (
	"log/slog"
	"time"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (l *LogNotifier) ScheduleImmediate(title, body string) {
	l.logger.Info("notification", "title", title, "body", body)
}

func (l *LogNotifier) ScheduleAt(title, body string, at time.Time) Handle {
	h := NewHandle()
	l.logger.Info("notification scheduled", "handle", h, "title", title, "body", body, "at", at)
	return h
}

func (l *LogNotifier) Cancel(h Handle) {
	l.logger.Info("notification cancelled", "handle", h)
}

func (l *LogNotifier) UpdatePersistent(stopsLeft *int, arrivalClock, label string) {
	attrs := []any{"label", label, "arrival", arrivalClock}
	if stopsLeft != nil {
		attrs = append(attrs, "stops_left", *stopsLeft)
	}
	l.logger.Info("persistent notification", attrs...)
}

func (l *LogNotifier) DismissPersistent() {
	l.logger.Info("persistent notification dismissed")
}
