package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "transitpulse.notify"

type Command struct {
	Handle       Handle     `json:"handle,omitempty"`
	Title        string     `json:"title,omitempty"`
	Body         string     `json:"body,omitempty"`
	At           *time.Time `json:"at,omitempty"`
	StopsLeft    *int       `json:"stops_left,omitempty"`
	ArrivalClock string     `json:"arrival_clock,omitempty"`
	Label        string     `json:"label,omitempty"`
}

// NATSNotifier publishes notification commands for a device-side agent.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

func NewNATSNotifier(url, prefix string, logger *slog.Logger) (*NATSNotifier, error) {
	logger = logger.With("component", "nats_notifier")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	nc, err := nats.Connect(url,
		nats.Name("transitpulse"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{nc: nc, prefix: prefix, logger: logger}, nil
}

func (n *NATSNotifier) Close() {
	if n.nc != nil {
		n.nc.Drain()
	}
}

func (n *NATSNotifier) ScheduleImmediate(title, body string) {
	n.publish("immediate", Command{Title: title, Body: body})
}

func (n *NATSNotifier) ScheduleAt(title, body string, at time.Time) Handle {
	h := NewHandle()
	n.publish("scheduled", Command{Handle: h, Title: title, Body: body, At: &at})
	return h
}

func (n *NATSNotifier) Cancel(h Handle) {
	if h == "" {
		return
	}
	n.publish("cancel", Command{Handle: h})
}

func (n *NATSNotifier) UpdatePersistent(stopsLeft *int, arrivalClock, label string) {
	n.publish("persistent.update", Command{StopsLeft: stopsLeft, ArrivalClock: arrivalClock, Label: label})
}

func (n *NATSNotifier) DismissPersistent() {
	n.publish("persistent.dismiss", Command{})
}

func (n *NATSNotifier) publish(kind string, cmd Command) {
	subject := n.prefix + "." + kind
	b, err := json.Marshal(cmd)
	if err != nil {
		n.logger.Error("encoding notification", "subject", subject, "error", err)
		return
	}
	if err := n.nc.Publish(subject, b); err != nil {
		n.logger.Error("publishing notification", "subject", subject, "error", err)
	}
}
