package taskqueue

import "sort"

// Limiter caps the number of active tasks across a fixed set of task names.
type Limiter struct {
	name    string
	limit   int
	members map[string]struct{}
}

// NewLimiter creates a limiter over already-expanded task names.
func NewLimiter(name string, limit int, members []string) *Limiter {
	l := &Limiter{
		name:    name,
		limit:   limit,
		members: make(map[string]struct{}, len(members)),
	}
	for _, m := range members {
		l.members[m] = struct{}{}
	}
	return l
}

// Name returns the queue name.
func (l *Limiter) Name() string { return l.name }

// Limit returns the active task cap.
func (l *Limiter) Limit() int { return l.limit }

// Has reports whether name is governed by this limiter.
func (l *Limiter) Has(name string) bool {
	_, ok := l.members[name]
	return ok
}

// Members returns the member names in sorted order.
func (l *Limiter) Members() []string {
	out := make([]string, 0, len(l.members))
	for m := range l.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// IsFree reports whether task may become active. Tasks outside the member
// set are always free.
func (l *Limiter) IsFree(task Task, active ActiveCounts) bool {
	if !l.Has(task.Name()) {
		return true
	}
	return l.Active(active) < l.limit
}

// Active sums the active counts of all members.
func (l *Limiter) Active(active ActiveCounts) int {
	n := 0
	for m := range l.members {
		n += active[m]
	}
	return n
}

// Adopt adds orphaned task names to the member set if target names this
// limiter. Only the default queue adopts orphans, so they stay under the
// global cap without counting against groups they never belonged to.
func (l *Limiter) Adopt(target string, orphans []string) {
	if target != l.name {
		return
	}
	for _, o := range orphans {
		l.members[o] = struct{}{}
	}
}
