package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	workpool "github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/logging"
	"github.com/Iron-Ham/cyclone/internal/pool"
	"github.com/Iron-Ham/cyclone/internal/taskqueue"
	"github.com/Iron-Ham/cyclone/internal/workflow"
)

// ErrCommandQueueFull is returned by Enqueue when the loop is not keeping up.
var ErrCommandQueueFull = errors.New("scheduler command queue is full")

// Scheduler drives one workflow run.
type Scheduler struct {
	def       *workflow.Definition
	queue     *taskqueue.EventQueue
	pool      *pool.Pool
	flows     *flow.Manager
	submitter Submitter
	bus       *event.Bus
	logger    *logging.Logger
	runID     string

	tickInterval time.Duration
	maxSubmit    int
	pruneEvery   int
	logPool      bool
	stateDir     string

	commands chan Command
	reports  chan Report
	reloads  <-chan *workflow.Definition
	done     chan struct{}

	ticks   int
	stalled bool
}

// New creates a scheduler for def. The flow manager should already hold
// any restored state.
func New(def *workflow.Definition, flows *flow.Manager, submitter Submitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		def:          def,
		flows:        flows,
		submitter:    submitter,
		logger:       logging.NopLogger(),
		runID:        uuid.NewString(),
		tickInterval: defaultTickInterval,
		maxSubmit:    defaultMaxSubmitParallel,
		pruneEvery:   defaultPruneEvery,
		commands:     make(chan Command, commandBuffer),
		reports:      make(chan Report, reportBuffer),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithWorkflow(def.Name).WithRun(s.runID)
	s.queue = taskqueue.NewEventQueue(def.NewQueue(), s.bus)
	s.pool = pool.New(s.queue, flows, def.TaskNames(), s.bus, s.logger)
	return s
}

// RunID returns the unique id of this scheduler run.
func (s *Scheduler) RunID() string { return s.runID }

// Pool returns the task pool. Use it only from the tick goroutine or
// before Run.
func (s *Scheduler) Pool() *pool.Pool { return s.pool }

// Queue returns the admission queue.
func (s *Scheduler) Queue() *taskqueue.EventQueue { return s.queue }

// Start spawns every task at every cycle point of the definition in a new
// flow.
func (s *Scheduler) Start(description string) error {
	id, err := s.flows.Allocate(description)
	if err != nil {
		return fmt.Errorf("start flow: %w", err)
	}
	for _, point := range s.def.Points() {
		for _, name := range s.def.TaskNames() {
			if _, err := s.pool.Spawn(name, point, id); err != nil {
				return err
			}
		}
	}
	s.logger.Info("workflow started", "flow", s.flows.Label(id), "tasks", s.pool.Len())
	s.saveFlows()
	return nil
}

// Enqueue hands an operator command to the loop. It does not block.
func (s *Scheduler) Enqueue(cmd Command) error {
	select {
	case s.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Report delivers a job status. It blocks while the report buffer is full
// and drops the report once Run has returned.
func (s *Scheduler) Report(r Report) {
	select {
	case s.reports <- r:
	case <-s.done:
	}
}

// Run ticks until ctx is cancelled or the pool empties.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.saveFlows()

	s.logger.Info("scheduler running", "tick_interval", s.tickInterval.String(), "max_submit_parallel", s.maxSubmit)
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "reason", ctx.Err().Error(), "remaining", s.pool.Len())
			return nil
		case <-ticker.C:
			s.Tick(ctx)
			if s.pool.Len() == 0 {
				s.logger.Info("workflow complete", "ticks", s.ticks)
				return nil
			}
		}
	}
}

// Tick runs one pass of the main loop.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()

	s.applyReload()
	forced := s.applyCommands()
	s.applyReports()

	s.pool.QueueReady()
	counts := s.pool.ActiveCounts()
	released := s.queue.Release(counts)
	if len(released) == 0 {
		s.logBlocked(counts)
	}
	toSubmit := make([]*pool.TaskProxy, 0, len(forced)+len(released))
	toSubmit = append(toSubmit, forced...)
	for _, t := range released {
		toSubmit = append(toSubmit, t.(*pool.TaskProxy))
	}
	s.submit(ctx, toSubmit)

	s.ticks++
	if s.pruneEvery > 0 && s.ticks%s.pruneEvery == 0 {
		if removed := s.pool.PruneFlows(); len(removed) > 0 {
			s.saveFlows()
		}
	}
	if s.logPool {
		s.pool.LogDump()
	}

	active := 0
	for _, n := range s.pool.ActiveCounts() {
		active += n
	}
	s.checkStall(active)
	s.bus.Publish(event.NewTickCompletedEvent(time.Since(start), s.pool.Len(), active, len(toSubmit)))
}

func (s *Scheduler) applyCommands() []*pool.TaskProxy {
	var forced []*pool.TaskProxy
	for {
		select {
		case cmd := <-s.commands:
			released, n, err := cmd.apply(s.pool)
			if err != nil {
				s.logger.Error("command failed", "command", cmd.Name, "items", cmd.Items, "error", err)
			} else {
				s.logger.Info("command applied", "command", cmd.Name, "items", cmd.Items, "matched", n)
			}
			forced = append(forced, released...)
			s.saveFlows()
		default:
			return forced
		}
	}
}

func (s *Scheduler) applyReports() {
	for {
		select {
		case r := <-s.reports:
			t, ok := s.pool.Get(r.Point, r.Name)
			if !ok {
				s.logger.Debug("report for task not in pool", "point", r.Point, "name", r.Name, "status", string(r.Status))
				continue
			}
			s.logger.WithTask(t.Identity()).Info("task status", "from", string(t.Status()), "to", string(r.Status))
			s.pool.Update(t, r.Status)
		default:
			return
		}
	}
}

type submitResult struct {
	task *pool.TaskProxy
	err  error
}

func (s *Scheduler) submit(ctx context.Context, tasks []*pool.TaskProxy) {
	if len(tasks) == 0 {
		return
	}

	p := workpool.NewWithResults[submitResult]().WithMaxGoroutines(s.maxSubmit)
	for _, t := range tasks {
		p.Go(func() submitResult {
			return submitResult{task: t, err: s.submitter.Submit(ctx, t, s.Report)}
		})
	}

	for _, r := range p.Wait() {
		log := s.logger.WithTask(r.task.Identity())
		if r.err != nil {
			log.Error("job submission failed", "error", r.err)
			s.pool.Update(r.task, pool.StatusFailed)
			s.bus.Publish(event.NewTaskSubmittedEvent(r.task.Identity(), false, r.err.Error()))
			continue
		}
		s.pool.Update(r.task, pool.StatusSubmitted)
		log.Info("job submitted", "submit_num", r.task.SubmitNum(), "flows", s.flows.Label(r.task.Flows()))
		s.bus.Publish(event.NewTaskSubmittedEvent(r.task.Identity(), true, ""))
	}
}

func (s *Scheduler) checkStall(active int) {
	stalled := active == 0 && s.queue.Len() == 0 && s.pool.Len() > 0
	if stalled && !s.stalled {
		s.logger.Warn("workflow stalled", "pool", s.pool.Dump())
	}
	s.stalled = stalled
}

// logBlocked reports which limiters hold back the head of the queue.
func (s *Scheduler) logBlocked(active taskqueue.ActiveCounts) {
	pending := s.queue.Pending()
	if len(pending) == 0 {
		return
	}
	head := pending[0].(*pool.TaskProxy)
	s.logger.WithTask(head.Identity()).Debug("queue blocked",
		"pending", len(pending), "free", s.queue.FreeMap(head, active), "active", map[string]int(active))
}

func (s *Scheduler) applyReload() {
	if s.reloads == nil {
		return
	}
	select {
	case def := <-s.reloads:
		s.Reload(def)
	default:
	}
}

// Reload switches to a new definition. The admission queue is rebuilt from
// the new queue configuration with waiting tasks kept in order, and task
// names in the pool that the new definition dropped are adopted by the
// default queue so their instances still count against the global cap.
func (s *Scheduler) Reload(def *workflow.Definition) {
	pending := s.queue.Pending()

	q := taskqueue.NewEventQueue(def.NewQueue(), s.bus)
	for _, t := range pending {
		q.Queue.Add(t)
	}
	orphans := def.Orphans(s.pool.Names())
	if len(orphans) > 0 {
		q.AdoptOrphans(orphans)
	}

	s.def = def
	s.queue = q
	s.pool.SetQueue(q)
	s.pool.SetTaskNames(def.TaskNames())

	s.logger.Info("workflow reloaded", "queues", len(q.Limiters()), "pending", q.Len(), "orphans", orphans)
	s.bus.Publish(event.NewWorkflowReloadedEvent(def.Name, orphans))
}

func (s *Scheduler) saveFlows() {
	if s.stateDir == "" {
		return
	}
	if err := flow.SaveState(s.stateDir, s.flows); err != nil {
		s.logger.Error("failed to save flow state", "error", err)
	}
}
