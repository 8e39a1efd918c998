package pool

import (
	"github.com/Iron-Ham/cyclone/internal/flow"
)

// Status is the run state of a task instance.
type Status string

// Task run states.
const (
	StatusWaiting   Status = "waiting"
	StatusPreparing Status = "preparing"
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ValidStatuses returns every run state, in lifecycle order.
func ValidStatuses() []Status {
	return []Status{StatusWaiting, StatusPreparing, StatusSubmitted, StatusRunning, StatusSucceeded, StatusFailed}
}

// IsValid reports whether s is a known run state.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// IsActive reports whether s counts against queue limits.
func (s Status) IsActive() bool {
	return s == StatusPreparing || s == StatusSubmitted || s == StatusRunning
}

// IsFinal reports whether s is terminal.
func (s Status) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// TaskProxy is one task instance in the pool. It implements
// taskqueue.Task.
type TaskProxy struct {
	name      string
	point     string
	status    Status
	flows     flow.ID
	flowWait  bool
	queued    bool
	held      bool
	requeue   bool // was queued when held
	manual    bool
	submitNum int
}

func newTaskProxy(name, point string, flows flow.ID) *TaskProxy {
	return &TaskProxy{name: name, point: point, status: StatusWaiting, flows: flows}
}

// Name returns the task definition name.
func (t *TaskProxy) Name() string { return t.name }

// Point returns the cycle point.
func (t *TaskProxy) Point() string { return t.point }

// Identity returns "point/name".
func (t *TaskProxy) Identity() string { return identity(t.point, t.name) }

// Status returns the run state.
func (t *TaskProxy) Status() Status { return t.status }

// Flows returns the task's flow identifier.
func (t *TaskProxy) Flows() flow.ID { return t.flows }

// FlowWait reports whether the task waits for a merge before flowing on.
func (t *TaskProxy) FlowWait() bool { return t.flowWait }

// IsQueued reports whether the task is waiting in the admission queue.
func (t *TaskProxy) IsQueued() bool { return t.queued }

// IsHeld reports whether the task is held.
func (t *TaskProxy) IsHeld() bool { return t.held }

// IsManual reports whether the task was force-triggered.
func (t *TaskProxy) IsManual() bool { return t.manual }

// SubmitNum returns the number of job submissions so far.
func (t *TaskProxy) SubmitNum() int { return t.submitNum }

// SetQueued sets or clears the queued flag.
func (t *TaskProxy) SetQueued(queued bool) { t.queued = queued }

// SetPreparing moves the task to preparing.
func (t *TaskProxy) SetPreparing() { t.status = StatusPreparing }

// ResetManualTrigger clears the manual trigger flag.
func (t *TaskProxy) ResetManualTrigger() { t.manual = false }

func identity(point, name string) string { return point + "/" + name }
