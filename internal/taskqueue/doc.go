// Package taskqueue implements admission control for waiting task instances.
//
// A [Queue] holds tasks that are ready to run, in arrival order. Once per
// scheduling tick the scheduler calls [Queue.Release] with the current
// active-task counts; the queue hands back every task it is allowed to start
// under its [Limiter]s and keeps the rest, still in arrival order, for the
// next tick.
//
// Two kinds of limit apply:
//
//   - Named queues cap the number of active tasks across a group of task
//     names. A task held back by a named queue is skipped, so tasks behind
//     it in other groups can still run.
//   - The queue named "default" covers every task and acts as a global
//     ceiling. Once it is reached nothing further is released that tick.
//
// Usage:
//
//	q := taskqueue.New(queues, def.TaskNames(), def.Descendants())
//	q.Add(task)
//
//	// each tick
//	for _, t := range q.Release(pool.ActiveCounts()) {
//	    // submit t
//	}
package taskqueue
