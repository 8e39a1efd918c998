package taskqueue

import (
	"github.com/Iron-Ham/cyclone/internal/event"
)

// identified is implemented by tasks that can describe their instance,
// e.g. "3/foo", for event payloads.
type identified interface {
	Identity() string
}

func identityOf(t Task) string {
	if id, ok := t.(identified); ok {
		return id.Identity()
	}
	return t.Name()
}

// EventQueue wraps a Queue and publishes events to a bus whenever the
// waiting set changes.
type EventQueue struct {
	*Queue
	bus *event.Bus
}

// NewEventQueue creates an EventQueue publishing on bus.
func NewEventQueue(q *Queue, bus *event.Bus) *EventQueue {
	return &EventQueue{Queue: q, bus: bus}
}

// Add queues a task and publishes TaskQueuedEvent and QueueDepthChangedEvent.
func (eq *EventQueue) Add(task Task) {
	before := eq.Queue.Len()
	eq.Queue.Add(task)
	if eq.Queue.Len() == before {
		return
	}
	eq.bus.Publish(event.NewTaskQueuedEvent(identityOf(task), task.Name()))
	eq.publishDepth()
}

// Remove drops a task and publishes QueueDepthChangedEvent if it was queued.
func (eq *EventQueue) Remove(task Task) {
	before := eq.Queue.Len()
	eq.Queue.Remove(task)
	if eq.Queue.Len() != before {
		eq.publishDepth()
	}
}

// Release releases tasks and publishes TasksReleasedEvent and
// QueueDepthChangedEvent when anything was released.
func (eq *EventQueue) Release(active ActiveCounts) []Task {
	released := eq.Queue.Release(active)
	if len(released) == 0 {
		return released
	}
	names := make([]string, len(released))
	for i, t := range released {
		names[i] = t.Name()
	}
	eq.bus.Publish(event.NewTasksReleasedEvent(names))
	eq.publishDepth()
	return released
}

func (eq *EventQueue) publishDepth() {
	eq.bus.Publish(event.NewQueueDepthChangedEvent(eq.Queue.Len()))
}
