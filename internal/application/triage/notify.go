package triage

import (
	"time"

	"github.com/altsecops/findings-console/internal/application"
)

// Notification is a transient user-facing notice (mutation failure, retryable
// transport banner, empty export). Internal conditions like a stale response
// never produce one.
type Notification struct {
	Level   string    `json:"level"` // "error" or "info"
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const notificationBacklog = 64

type notifier struct {
	clock application.Clock
	ch    chan Notification
}

func newNotifier(clock application.Clock) *notifier {
	return &notifier{clock: clock, ch: make(chan Notification, notificationBacklog)}
}

// push drops the oldest pending notice when the backlog is full; notices are
// transient by contract.
func (n *notifier) push(level, msg string) {
	note := Notification{Level: level, Message: msg, At: n.clock.Now()}
	for {
		select {
		case n.ch <- note:
			return
		default:
			select {
			case <-n.ch:
			default:
			}
		}
	}
}

// drain returns all pending notifications without blocking.
func (n *notifier) drain() []Notification {
	out := []Notification{}
	for {
		select {
		case note := <-n.ch:
			out = append(out, note)
		default:
			return out
		}
	}
}
