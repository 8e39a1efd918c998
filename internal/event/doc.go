// Package event provides a synchronous pub-sub bus that lets the scheduler,
// the admission queue and the flow manager report what they do without
// knowing who listens (metrics, logging, tests).
//
// Event types follow the "category.action" convention:
//   - queue.task_queued, queue.tasks_released, queue.depth_changed
//   - flow.started, flow.merged, flow.pruned
//   - task.submitted, task.finished
//   - workflow.reloaded
//
// Handlers run on the publishing goroutine. A panicking handler is logged
// and does not stop delivery to the remaining handlers.
package event
