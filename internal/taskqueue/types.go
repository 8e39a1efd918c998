package taskqueue

// DefaultQueue is the name of the queue that contains every task and, when
// given a limit, acts as a global cap on active tasks.
const DefaultQueue = "default"

// Task is a pooled task instance as seen by the admission queue. Tasks are
// compared by identity, so implementations should be pointer types.
type Task interface {
	// Name returns the task definition name used for limiter membership.
	Name() string
	// SetQueued sets or clears the task's queued flag.
	SetQueued(queued bool)
	// SetPreparing moves the task's run state to preparing.
	SetPreparing()
	// ResetManualTrigger clears any pending manual trigger on the task.
	ResetManualTrigger()
}

// ActiveCounts maps task definition names to the number of instances that
// are currently preparing, submitted or running. Release increments it in
// place; a nil map is treated as empty and the increments are discarded.
type ActiveCounts map[string]int

// QueueConfig is the configuration of one named queue.
type QueueConfig struct {
	// Limit is the maximum number of active member tasks; 0 means no limit.
	Limit int `yaml:"limit" json:"limit"`
	// Members lists task or family names. Ignored for the default queue.
	Members []string `yaml:"members" json:"members"`
}
