package pool

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/logging"
	"github.com/Iron-Ham/cyclone/internal/taskqueue"
)

// Errors returned by pool operations.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrUnknownTask  = errors.New("task not defined in workflow")
	ErrTaskActive   = errors.New("task is already active")
)

// Admitter is the admission queue as seen by the pool.
type Admitter interface {
	Add(task taskqueue.Task)
	Remove(task taskqueue.Task)
}

// Pool is the set of task instances the scheduler is tracking.
type Pool struct {
	tasks  map[string]*TaskProxy // by identity
	names  map[string]struct{}   // defined task names
	queue  Admitter
	flows  *flow.Manager
	bus    *event.Bus
	logger *logging.Logger
}

// New creates an empty pool. taskNames are the task definitions that may be
// spawned. bus and logger may be nil.
func New(queue Admitter, flows *flow.Manager, taskNames []string, bus *event.Bus, logger *logging.Logger) *Pool {
	if logger == nil {
		logger = logging.NopLogger()
	}
	p := &Pool{
		tasks:  make(map[string]*TaskProxy),
		queue:  queue,
		flows:  flows,
		bus:    bus,
		logger: logger,
	}
	p.SetTaskNames(taskNames)
	return p
}

// SetQueue swaps the admission queue, e.g. after a workflow reload. The
// caller is responsible for moving queued tasks across.
func (p *Pool) SetQueue(queue Admitter) { p.queue = queue }

// SetTaskNames replaces the set of spawnable task definitions.
func (p *Pool) SetTaskNames(names []string) {
	p.names = make(map[string]struct{}, len(names))
	for _, n := range names {
		p.names[n] = struct{}{}
	}
}

// Spawn adds a waiting instance of name at point in flows. If the instance
// already exists its flows are merged with the new ones instead, so a flow
// catching up with another continues as one.
func (p *Pool) Spawn(name, point string, flows flow.ID) (*TaskProxy, error) {
	if _, ok := p.names[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	key := identity(point, name)
	if t, ok := p.tasks[key]; ok {
		merged := flow.Merge(t.flows, flows)
		if !merged.Equal(t.flows) {
			p.logger.Info("merged flows", "task", key, "from", p.label(flows), "into", p.label(t.flows), "result", p.label(merged))
			p.bus.Publish(event.NewFlowsMergedEvent(key, p.label(flows), p.label(t.flows), p.label(merged)))
			t.flows = merged
		}
		return t, nil
	}

	t := newTaskProxy(name, point, flows)
	p.tasks[key] = t
	p.logger.Debug("spawned task", "task", key, "flows", p.label(flows))
	return t, nil
}

// Get returns the instance of name at point.
func (p *Pool) Get(point, name string) (*TaskProxy, bool) {
	t, ok := p.tasks[identity(point, name)]
	return t, ok
}

// Len returns the number of instances in the pool.
func (p *Pool) Len() int { return len(p.tasks) }

// Tasks returns every instance ordered by cycle point then name.
func (p *Pool) Tasks() []*TaskProxy {
	out := make([]*TaskProxy, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *TaskProxy) int {
		if c := comparePoints(a.point, b.point); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return out
}

// comparePoints orders integer cycle points numerically and anything else
// lexically, which is correct for ISO 8601 points of equal precision.
func comparePoints(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return cmp.Compare(ai, bi)
	}
	return strings.Compare(a, b)
}

// Names returns the distinct task names present in the pool, sorted.
func (p *Pool) Names() []string {
	seen := make(map[string]struct{})
	for _, t := range p.tasks {
		seen[t.name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Queue hands a waiting task to the admission queue. Held, active and
// finished tasks are not queued.
func (p *Pool) Queue(t *TaskProxy) bool {
	if t.held || t.status != StatusWaiting {
		return false
	}
	p.queue.Add(t)
	return true
}

// QueueReady queues every waiting task that is neither held nor already
// queued, in pool order. It returns how many were queued.
func (p *Pool) QueueReady() int {
	n := 0
	for _, t := range p.Tasks() {
		if t.queued {
			continue
		}
		if p.Queue(t) {
			n++
		}
	}
	return n
}

// ActiveCounts counts preparing, submitted and running instances by name.
func (p *Pool) ActiveCounts() taskqueue.ActiveCounts {
	active := make(taskqueue.ActiveCounts)
	for _, t := range p.tasks {
		if t.status.IsActive() {
			active[t.name]++
		}
	}
	return active
}

// ActiveFlows returns the union of every instance's flows.
func (p *Pool) ActiveFlows() flow.ID {
	var all flow.ID
	for _, t := range p.tasks {
		all = flow.Merge(all, t.flows)
	}
	return all
}

// Select returns the instances matched by any of items, in pool order,
// together with the items that matched nothing.
func (p *Pool) Select(items []string) ([]*TaskProxy, []*Selector, error) {
	sels, err := ParseSelectors(items)
	if err != nil {
		return nil, nil, err
	}
	matched, unmatched := p.match(sels)
	return matched, unmatched, nil
}

func (p *Pool) match(sels []*Selector) ([]*TaskProxy, []*Selector) {
	var matched []*TaskProxy
	hit := make([]bool, len(sels))
	for _, t := range p.Tasks() {
		for i, s := range sels {
			if s.Match(t) {
				hit[i] = true
				matched = append(matched, t)
				break
			}
		}
	}
	var unmatched []*Selector
	for i, s := range sels {
		if !hit[i] {
			unmatched = append(unmatched, s)
		}
	}
	return matched, unmatched
}

// Trigger applies an operator trigger.
//
// Matched instances already in the pool keep their flows by default; an
// explicit "all" merges them with every active flow, numbered or new flows
// are merged in, and "none" is ignored. Exact items not in the pool are
// spawned, into every active flow by default or the selected flows
// otherwise. A queued instance is released at once, bypassing queue limits,
// and returned so the caller can submit it; any other waiting instance is
// queued. Active instances are skipped.
func (p *Pool) Trigger(items []string, sel flow.Selector) ([]*TaskProxy, error) {
	sels, err := ParseSelectors(items)
	if err != nil {
		return nil, err
	}
	matched, unmatched := p.match(sels)
	active := p.ActiveFlows()

	// A new flow is allocated once per command, not per task.
	var selected flow.ID
	if sel.Kind != flow.SelectAll {
		if selected, err = p.flows.Resolve(sel, active); err != nil {
			return nil, fmt.Errorf("resolve flow: %w", err)
		}
	}

	for _, t := range matched {
		switch {
		case sel.Default, sel.Kind == flow.SelectNone:
		case sel.Kind == flow.SelectAll:
			t.flows = flow.Merge(t.flows, active)
		default:
			t.flows = flow.Merge(t.flows, selected)
		}
	}

	var errs []error
	for _, s := range unmatched {
		if !s.IsExact() {
			p.logger.Warn("no tasks matched", "item", s.Raw)
			continue
		}
		flows := selected
		if sel.Kind == flow.SelectAll {
			flows = active
		}
		t, err := p.Spawn(s.Name, s.Point, flows)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		matched = append(matched, t)
	}

	var released []*TaskProxy
	for _, t := range matched {
		if t.status.IsActive() {
			p.logger.Warn("cannot trigger active task", "task", t.Identity(), "status", string(t.status))
			continue
		}
		t.flowWait = sel.Wait
		if t.queued {
			p.queue.Remove(t)
			t.SetQueued(false)
			t.SetPreparing()
			t.manual = true
			released = append(released, t)
			p.logger.Info("force released", "task", t.Identity(), "flow_wait", t.flowWait)
			continue
		}
		if t.status.IsFinal() {
			t.status = StatusWaiting
		}
		t.held = false
		p.Queue(t)
	}
	return released, errors.Join(errs...)
}

// SetStatus forces the run state of the selected instances. Instances set
// to succeeded leave the pool; instances set to anything but waiting leave
// the queue.
func (p *Pool) SetStatus(items []string, status Status) (int, error) {
	if !status.IsValid() {
		return 0, fmt.Errorf("unknown status %q", status)
	}
	matched, unmatched, err := p.Select(items)
	if err != nil {
		return 0, err
	}
	p.warnUnmatched(unmatched)

	for _, t := range matched {
		if status != StatusWaiting && t.queued {
			p.queue.Remove(t)
			t.SetQueued(false)
		}
		p.logger.Info("set status", "task", t.Identity(), "from", string(t.status), "to", string(status))
		p.Update(t, status)
	}
	return len(matched), nil
}

// Hold holds the selected instances. Held instances leave the queue and
// rejoin it when released.
func (p *Pool) Hold(items []string) (int, error) {
	matched, unmatched, err := p.Select(items)
	if err != nil {
		return 0, err
	}
	p.warnUnmatched(unmatched)

	for _, t := range matched {
		if t.held {
			continue
		}
		t.held = true
		if t.queued {
			p.queue.Remove(t)
			t.SetQueued(false)
			t.requeue = true
		}
	}
	return len(matched), nil
}

// Unhold releases held instances among the selected ones.
func (p *Pool) Unhold(items []string) (int, error) {
	matched, unmatched, err := p.Select(items)
	if err != nil {
		return 0, err
	}
	p.warnUnmatched(unmatched)

	n := 0
	for _, t := range matched {
		if !t.held {
			continue
		}
		t.held = false
		if t.requeue {
			t.requeue = false
			p.Queue(t)
		}
		n++
	}
	return n, nil
}

// Update records a run state change reported for t. Succeeded instances
// leave the pool; failed ones stay for the operator to retrigger.
func (p *Pool) Update(t *TaskProxy, status Status) {
	if status == StatusSubmitted {
		t.submitNum++
	}
	t.status = status
	if !status.IsFinal() {
		return
	}
	p.bus.Publish(event.NewTaskFinishedEvent(t.Identity(), string(status)))
	if status == StatusSucceeded {
		p.Remove(t)
	}
}

// Remove drops t from the pool and the queue.
func (p *Pool) Remove(t *TaskProxy) {
	if t.queued {
		p.queue.Remove(t)
		t.SetQueued(false)
	}
	delete(p.tasks, t.Identity())
}

// RemoveItems removes the selected instances.
func (p *Pool) RemoveItems(items []string) (int, error) {
	matched, unmatched, err := p.Select(items)
	if err != nil {
		return 0, err
	}
	p.warnUnmatched(unmatched)
	for _, t := range matched {
		p.Remove(t)
	}
	return len(matched), nil
}

// PruneFlows strips redundant flow atoms from every instance.
func (p *Pool) PruneFlows() []int {
	ptrs := make([]*flow.ID, 0, len(p.tasks))
	for _, t := range p.tasks {
		ptrs = append(ptrs, &t.flows)
	}
	return p.flows.Prune(ptrs)
}

func (p *Pool) warnUnmatched(unmatched []*Selector) {
	for _, s := range unmatched {
		p.logger.Warn("no tasks matched", "item", s.Raw)
	}
}

func (p *Pool) label(id flow.ID) string {
	if p.flows == nil {
		return id.String()
	}
	return p.flows.Label(id)
}
