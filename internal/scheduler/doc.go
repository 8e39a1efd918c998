// Package scheduler runs the cyclone main loop.
//
// Each tick the [Scheduler] applies queued operator commands and job
// reports, queues ready tasks, asks the admission queue which tasks may
// start under current limits, submits those jobs with bounded concurrency,
// and periodically prunes redundant flow atoms from the task pool. All pool,
// queue and flow state is touched only from the tick goroutine; other
// goroutines talk to the loop through [Scheduler.Enqueue] and
// [Scheduler.Report].
package scheduler
