package teleop

import (
	"fmt"

	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// ControlEvent is a discrete loop-level command delivered out of band from
// the joint command stream: the transport enqueues, the control loop drains
// once per tick.
type ControlEvent int

const (
	EventResume ControlEvent = iota
	EventReset
	EventStop
)

func (e ControlEvent) String() string {
	switch e {
	case EventResume:
		return "resume"
	case EventReset:
		return "reset"
	case EventStop:
		return "stop"
	}
	return "unknown"
}

// ParseControlEvent maps a wire name to a ControlEvent.
func ParseControlEvent(name string) (ControlEvent, error) {
	switch name {
	case "resume":
		return EventResume, nil
	case "reset":
		return EventReset, nil
	case "stop":
		return EventStop, nil
	}
	return 0, fmt.Errorf("%w: unknown control event %q", ErrProtocol, name)
}

// EventQueue is a bounded queue of control events. Pushes never block: when
// the queue is full the event is dropped with a warning.
type EventQueue struct {
	ch     chan ControlEvent
	logger customlog.Logger
}

// NewEventQueue creates a queue holding up to size events.
func NewEventQueue(size int, logger customlog.Logger) *EventQueue {
	return &EventQueue{
		ch:     make(chan ControlEvent, size),
		logger: logger,
	}
}

// Push enqueues an event without blocking. Returns false if it was dropped.
func (q *EventQueue) Push(ev ControlEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.logger.Warnf("Control event queue full, discarding %s", ev)
		return false
	}
}

// Drain delivers every queued event to fn, in order, without blocking.
func (q *EventQueue) Drain(fn func(ControlEvent)) {
	for {
		select {
		case ev := <-q.ch:
			fn(ev)
		default:
			return
		}
	}
}
