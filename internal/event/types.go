package event

import "time"

// Event is implemented by everything published on a Bus.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// Event type names.
const (
	TypeTaskQueued        = "queue.task_queued"
	TypeTasksReleased     = "queue.tasks_released"
	TypeQueueDepthChanged = "queue.depth_changed"
	TypeFlowStarted       = "flow.started"
	TypeFlowsMerged       = "flow.merged"
	TypeFlowsPruned       = "flow.pruned"
	TypeTaskSubmitted     = "task.submitted"
	TypeTaskFinished      = "task.finished"
	TypeWorkflowReloaded  = "workflow.reloaded"
	TypeTickCompleted     = "scheduler.tick_completed"
)

// -----------------------------------------------------------------------------
// Admission queue events
// -----------------------------------------------------------------------------

// TaskQueuedEvent is emitted when a task enters the admission queue.
type TaskQueuedEvent struct {
	baseEvent
	Task string // task identity, e.g. "3/foo"
	Name string // task definition name
}

// NewTaskQueuedEvent creates a TaskQueuedEvent.
func NewTaskQueuedEvent(task, name string) TaskQueuedEvent {
	return TaskQueuedEvent{baseEvent: newBaseEvent(TypeTaskQueued), Task: task, Name: name}
}

// TasksReleasedEvent is emitted once per release pass that freed at least
// one task.
type TasksReleasedEvent struct {
	baseEvent
	Names []string // definition names of released tasks, in release order
}

// NewTasksReleasedEvent creates a TasksReleasedEvent.
func NewTasksReleasedEvent(names []string) TasksReleasedEvent {
	return TasksReleasedEvent{baseEvent: newBaseEvent(TypeTasksReleased), Names: names}
}

// QueueDepthChangedEvent reports the number of tasks waiting in the queue.
type QueueDepthChangedEvent struct {
	baseEvent
	Pending int
}

// NewQueueDepthChangedEvent creates a QueueDepthChangedEvent.
func NewQueueDepthChangedEvent(pending int) QueueDepthChangedEvent {
	return QueueDepthChangedEvent{baseEvent: newBaseEvent(TypeQueueDepthChanged), Pending: pending}
}

// -----------------------------------------------------------------------------
// Flow events
// -----------------------------------------------------------------------------

// FlowStartedEvent is emitted when a new flow identifier is allocated.
type FlowStartedEvent struct {
	baseEvent
	Flow        string
	Description string
}

// NewFlowStartedEvent creates a FlowStartedEvent.
func NewFlowStartedEvent(flow, description string) FlowStartedEvent {
	return FlowStartedEvent{baseEvent: newBaseEvent(TypeFlowStarted), Flow: flow, Description: description}
}

// FlowsMergedEvent is emitted when a spawn catches up with an existing task
// instance and the two flows are merged onto it.
type FlowsMergedEvent struct {
	baseEvent
	Task   string
	From   string
	Into   string
	Result string
}

// NewFlowsMergedEvent creates a FlowsMergedEvent.
func NewFlowsMergedEvent(task, from, into, result string) FlowsMergedEvent {
	return FlowsMergedEvent{baseEvent: newBaseEvent(TypeFlowsMerged), Task: task, From: from, Into: into, Result: result}
}

// FlowsPrunedEvent is emitted when a prune pass strips common atoms.
type FlowsPrunedEvent struct {
	baseEvent
	Atoms []int
}

// NewFlowsPrunedEvent creates a FlowsPrunedEvent.
func NewFlowsPrunedEvent(atoms []int) FlowsPrunedEvent {
	return FlowsPrunedEvent{baseEvent: newBaseEvent(TypeFlowsPruned), Atoms: atoms}
}

// -----------------------------------------------------------------------------
// Job events
// -----------------------------------------------------------------------------

// TaskSubmittedEvent is emitted after a released task's job submission.
type TaskSubmittedEvent struct {
	baseEvent
	Task    string
	Success bool
	Err     string
}

// NewTaskSubmittedEvent creates a TaskSubmittedEvent.
func NewTaskSubmittedEvent(task string, success bool, errMsg string) TaskSubmittedEvent {
	return TaskSubmittedEvent{baseEvent: newBaseEvent(TypeTaskSubmitted), Task: task, Success: success, Err: errMsg}
}

// TaskFinishedEvent is emitted when a job reports a terminal status.
type TaskFinishedEvent struct {
	baseEvent
	Task   string
	Status string
}

// NewTaskFinishedEvent creates a TaskFinishedEvent.
func NewTaskFinishedEvent(task, status string) TaskFinishedEvent {
	return TaskFinishedEvent{baseEvent: newBaseEvent(TypeTaskFinished), Task: task, Status: status}
}

// WorkflowReloadedEvent is emitted after a definition reload is applied.
type WorkflowReloadedEvent struct {
	baseEvent
	Workflow string
	Orphans  []string
}

// NewWorkflowReloadedEvent creates a WorkflowReloadedEvent.
func NewWorkflowReloadedEvent(workflow string, orphans []string) WorkflowReloadedEvent {
	return WorkflowReloadedEvent{baseEvent: newBaseEvent(TypeWorkflowReloaded), Workflow: workflow, Orphans: orphans}
}

// TickCompletedEvent is emitted at the end of every scheduling tick.
type TickCompletedEvent struct {
	baseEvent
	Duration time.Duration
	PoolSize int
	Active   int
	Released int
}

// NewTickCompletedEvent creates a TickCompletedEvent.
func NewTickCompletedEvent(d time.Duration, poolSize, active, released int) TickCompletedEvent {
	return TickCompletedEvent{
		baseEvent: newBaseEvent(TypeTickCompleted),
		Duration:  d,
		PoolSize:  poolSize,
		Active:    active,
		Released:  released,
	}
}
