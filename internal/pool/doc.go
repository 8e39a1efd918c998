// Package pool holds the scheduler's in-memory task pool.
//
// A TaskProxy is one task instance at one cycle point. It carries the run
// state the admission queue manipulates and the flow identifier the flow
// manager prunes. The Pool spawns proxies, merges flows when an instance is
// spawned twice, hands ready tasks to the admission queue, and applies
// operator commands (trigger, set, hold, release) selected by glob items
// such as "2024*/post_*:failed".
//
// The Pool is owned by the scheduler's tick goroutine and is not safe for
// concurrent use.
package pool
