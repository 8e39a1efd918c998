package taskqueue

import (
	"sort"
	"sync"
)

// Queue holds tasks waiting to run in arrival order and releases them
// subject to its limiters. All methods are safe for concurrent use via an
// internal mutex, but Release is meant to be called once per tick.
type Queue struct {
	mu       sync.Mutex
	pending  []Task // oldest first
	index    map[Task]struct{}
	limiters []*Limiter // named queues, sorted by name
	global   *Limiter   // default queue, nil when unlimited
}

// New builds a Queue from queue configuration. Every member of a named
// queue is expanded through descendants; the default queue receives all
// of allTasks regardless of its configured members. Queues with a zero
// limit are unlimited and get no limiter.
func New(queues map[string]QueueConfig, allTasks []string, descendants map[string][]string) *Queue {
	q := &Queue{index: make(map[Task]struct{})}

	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := queues[name]
		if cfg.Limit <= 0 {
			continue
		}
		if name == DefaultQueue {
			q.global = NewLimiter(name, cfg.Limit, allTasks)
			continue
		}
		q.limiters = append(q.limiters, NewLimiter(name, cfg.Limit, ExpandMembers(cfg.Members, descendants)))
	}
	return q
}

// Add queues a task at the tail. The task is flagged queued and any manual
// trigger on it is cleared. Adding a task that is already waiting leaves
// its position unchanged.
func (q *Queue) Add(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task.SetQueued(true)
	task.ResetManualTrigger()
	if _, ok := q.index[task]; ok {
		return
	}
	q.index[task] = struct{}{}
	q.pending = append(q.pending, task)
}

// Remove drops a task from the queue. Removing a task that is not queued
// is a no-op.
func (q *Queue) Remove(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[task]; !ok {
		return
	}
	delete(q.index, task)
	for i, t := range q.pending {
		if t == task {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Contains reports whether task is waiting in the queue.
func (q *Queue) Contains(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[task]
	return ok
}

// AdoptOrphans offers task names that are no longer defined to every
// limiter. Only the default queue takes them; named queues are untouched.
func (q *Queue) AdoptOrphans(names []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.global != nil {
		q.global.Adopt(DefaultQueue, names)
	}
	for _, l := range q.limiters {
		l.Adopt(DefaultQueue, names)
	}
}

// Release returns the tasks that may start now, oldest first. active is
// updated in place; a nil map counts as empty.
//
// Candidates are taken in arrival order. If the default queue is full the
// pass stops and every remaining task keeps its place. Otherwise a task held
// back by any named queue is skipped, and a free task is marked preparing
// and counted in active so later candidates in the same pass see it.
// Skipped tasks stay queued in their original relative order.
func (q *Queue) Release(active ActiveCounts) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if active == nil {
		active = make(ActiveCounts)
	}

	var released, rejected []Task
	for i, candidate := range q.pending {
		if q.global != nil && !q.global.IsFree(candidate, active) {
			rejected = append(rejected, q.pending[i:]...)
			break
		}
		if !q.allFree(candidate, active) {
			rejected = append(rejected, candidate)
			continue
		}
		candidate.SetPreparing()
		candidate.SetQueued(false)
		delete(q.index, candidate)
		active[candidate.Name()]++
		released = append(released, candidate)
	}

	q.pending = rejected
	return released
}

func (q *Queue) allFree(task Task, active ActiveCounts) bool {
	for _, l := range q.limiters {
		if !l.IsFree(task, active) {
			return false
		}
	}
	return true
}

// FreeMap reports, per limiter name, whether task is currently free under
// that limiter. It is meant for diagnostics.
func (q *Queue) FreeMap(task Task, active ActiveCounts) map[string]bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := make(map[string]bool, len(q.limiters)+1)
	if q.global != nil {
		m[q.global.Name()] = q.global.IsFree(task, active)
	}
	for _, l := range q.limiters {
		m[l.Name()] = l.IsFree(task, active)
	}
	return m
}

// Len returns the number of waiting tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns a snapshot of the waiting tasks, oldest first.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, len(q.pending))
	copy(out, q.pending)
	return out
}

// Limiters returns the configured limiters, the global one first if set.
func (q *Queue) Limiters() []*Limiter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Limiter, 0, len(q.limiters)+1)
	if q.global != nil {
		out = append(out, q.global)
	}
	return append(out, q.limiters...)
}
