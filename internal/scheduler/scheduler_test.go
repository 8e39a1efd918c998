package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/logging"
	"github.com/Iron-Ham/cyclone/internal/pool"
	"github.com/Iron-Ham/cyclone/internal/taskqueue"
	"github.com/Iron-Ham/cyclone/internal/workflow"
)

type recordingSubmitter struct {
	mu        sync.Mutex
	submitted []string
	fail      map[string]error
}

func (r *recordingSubmitter) Submit(_ context.Context, t *pool.TaskProxy, _ func(Report)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, t.Identity())
	return r.fail[t.Name()]
}

func (r *recordingSubmitter) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.submitted
	r.submitted = nil
	slices.Sort(out)
	return out
}

func mustParse(t *testing.T, yaml string) *workflow.Definition {
	t.Helper()
	def, err := workflow.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return def
}

func newScheduler(t *testing.T, yaml string, sub Submitter, opts ...Option) *Scheduler {
	t.Helper()
	mgr, err := flow.NewManager(flow.SchemeNumbers, nil, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s := New(mustParse(t, yaml), mgr, sub, append([]Option{WithPruneInterval(0)}, opts...)...)
	if err := s.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func queuedIdentities(q *taskqueue.EventQueue) []string {
	var out []string
	for _, t := range q.Pending() {
		out = append(out, t.(*pool.TaskProxy).Identity())
	}
	return out
}

const threeTasks = `
name: w
tasks: [a, b, c]
queues:
  default: {limit: 2}
`

func TestTick_RespectsGlobalLimit(t *testing.T) {
	sub := &recordingSubmitter{}
	s := newScheduler(t, threeTasks, sub)

	s.Tick(context.Background())

	if diff := cmp.Diff([]string{"1/a", "1/b"}, sub.take()); diff != "" {
		t.Errorf("submitted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1/c"}, queuedIdentities(s.Queue())); diff != "" {
		t.Errorf("queued mismatch (-want +got):\n%s", diff)
	}
	a, _ := s.Pool().Get("1", "a")
	if a.Status() != pool.StatusSubmitted || a.SubmitNum() != 1 {
		t.Errorf("a: status=%s submit_num=%d", a.Status(), a.SubmitNum())
	}

	s.Report(Report{Point: "1", Name: "a", Status: pool.StatusSucceeded})
	s.Tick(context.Background())

	if diff := cmp.Diff([]string{"1/c"}, sub.take()); diff != "" {
		t.Errorf("submitted after completion mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Pool().Get("1", "a"); ok {
		t.Error("succeeded task should leave the pool")
	}
}

func TestTick_TriggerForcesQueuedTask(t *testing.T) {
	sub := &recordingSubmitter{}
	s := newScheduler(t, "name: w\ntasks: [a, b]\nqueues: {default: {limit: 1}}", sub)

	s.Tick(context.Background())
	if diff := cmp.Diff([]string{"1/a"}, sub.take()); diff != "" {
		t.Fatalf("submitted mismatch (-want +got):\n%s", diff)
	}

	sel, _ := flow.ParseSelector(nil, "", false)
	if err := s.Enqueue(TriggerCommand([]string{"1/b"}, sel)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	s.Tick(context.Background())

	if diff := cmp.Diff([]string{"1/b"}, sub.take()); diff != "" {
		t.Errorf("forced submission mismatch (-want +got):\n%s", diff)
	}
	b, _ := s.Pool().Get("1", "b")
	if !b.IsManual() || b.Status() != pool.StatusSubmitted {
		t.Errorf("b: manual=%v status=%s", b.IsManual(), b.Status())
	}
}

func TestTick_SubmitFailure(t *testing.T) {
	bus := event.NewBus()
	var results []event.TaskSubmittedEvent
	bus.Subscribe(event.TypeTaskSubmitted, func(e event.Event) {
		results = append(results, e.(event.TaskSubmittedEvent))
	})

	sub := &recordingSubmitter{fail: map[string]error{"a": errors.New("no route to host")}}
	s := newScheduler(t, "name: w\ntasks: [a]", sub, WithBus(bus))
	s.Tick(context.Background())

	a, _ := s.Pool().Get("1", "a")
	if a.Status() != pool.StatusFailed {
		t.Errorf("status = %s, want failed", a.Status())
	}
	if len(results) != 1 || results[0].Success || results[0].Err != "no route to host" {
		t.Errorf("unexpected submit events: %+v", results)
	}
}

func TestTick_PrunesFlows(t *testing.T) {
	bus := event.NewBus()
	var pruned [][]int
	bus.Subscribe(event.TypeFlowsPruned, func(e event.Event) {
		pruned = append(pruned, e.(event.FlowsPrunedEvent).Atoms)
	})

	mgr, _ := flow.NewManager(flow.SchemeNumbers, bus, nil)
	s := New(mustParse(t, "name: w\ntasks: [a, b]"), mgr, &recordingSubmitter{}, WithBus(bus), WithPruneInterval(2))
	a, _ := s.Pool().Spawn("a", "1", flow.NewID(1, 2, 3))
	b, _ := s.Pool().Spawn("b", "1", flow.NewID(1, 2, 4))
	if _, err := s.Pool().Hold([]string{"*"}); err != nil {
		t.Fatal(err)
	}

	s.Tick(context.Background())
	if len(pruned) != 0 {
		t.Fatal("pruning must wait for the prune interval")
	}
	s.Tick(context.Background())

	if diff := cmp.Diff([][]int{{2}}, pruned); diff != "" {
		t.Errorf("pruned mismatch (-want +got):\n%s", diff)
	}
	if !a.Flows().Equal(flow.NewID(1, 3)) || !b.Flows().Equal(flow.NewID(1, 4)) {
		t.Errorf("flows after prune: %v %v", a.Flows(), b.Flows())
	}
}

func TestReload_KeepsPendingAndAdoptsOrphans(t *testing.T) {
	bus := event.NewBus()
	var reloaded []event.WorkflowReloadedEvent
	bus.Subscribe(event.TypeWorkflowReloaded, func(e event.Event) {
		reloaded = append(reloaded, e.(event.WorkflowReloadedEvent))
	})

	sub := &recordingSubmitter{}
	s := newScheduler(t, "name: w\ntasks: [a, b, c]\nqueues: {default: {limit: 1}}", sub, WithBus(bus))
	s.Tick(context.Background())
	sub.take()

	reloads := make(chan *workflow.Definition, 1)
	s.reloads = reloads
	reloads <- mustParse(t, "name: w\ntasks: [a, b]\nqueues: {default: {limit: 1}, q: {limit: 1, members: [b]}}")
	s.Tick(context.Background())

	if got := sub.take(); len(got) != 0 {
		t.Errorf("nothing should be submitted while a is active, got %v", got)
	}
	if diff := cmp.Diff([]string{"1/b", "1/c"}, queuedIdentities(s.Queue())); diff != "" {
		t.Errorf("pending order mismatch (-want +got):\n%s", diff)
	}
	for _, l := range s.Queue().Limiters() {
		if adopted, want := l.Has("c"), l.Name() == taskqueue.DefaultQueue; adopted != want {
			t.Errorf("limiter %s: adopted orphan c = %v, want %v", l.Name(), adopted, want)
		}
	}
	if len(reloaded) != 1 || !slices.Equal(reloaded[0].Orphans, []string{"c"}) {
		t.Errorf("unexpected reload events: %+v", reloaded)
	}
	if _, err := s.Pool().Spawn("c", "2", nil); !errors.Is(err, pool.ErrUnknownTask) {
		t.Errorf("dropped task must not spawn, got %v", err)
	}
}

func TestEnqueue_Full(t *testing.T) {
	s := newScheduler(t, "name: w\ntasks: [a]", &recordingSubmitter{})
	for range commandBuffer {
		if err := s.Enqueue(HoldCommand([]string{"a"})); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := s.Enqueue(HoldCommand([]string{"a"})); !errors.Is(err, ErrCommandQueueFull) {
		t.Errorf("expected ErrCommandQueueFull, got %v", err)
	}
}

func TestTick_LogsBlockedQueueHead(t *testing.T) {
	var buf bytes.Buffer
	sub := &recordingSubmitter{}
	s := newScheduler(t, threeTasks, sub, WithLogger(logging.NewWriterLogger(&buf, logging.LevelDebug, nil)))

	s.Tick(context.Background())
	sub.take()
	buf.Reset()
	s.Tick(context.Background())

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry struct {
			Msg  string          `json:"msg"`
			Task string          `json:"task"`
			Free map[string]bool `json:"free"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if entry.Msg != "queue blocked" {
			continue
		}
		found = true
		if entry.Task != "1/c" {
			t.Errorf("blocked task = %q, want 1/c", entry.Task)
		}
		if diff := cmp.Diff(map[string]bool{taskqueue.DefaultQueue: false}, entry.Free); diff != "" {
			t.Errorf("free map mismatch (-want +got):\n%s", diff)
		}
	}
	if !found {
		t.Errorf("no queue blocked entry in:\n%s", buf.String())
	}
}

func TestTick_StallDetectedOnce(t *testing.T) {
	sub := &recordingSubmitter{}
	s := newScheduler(t, "name: w\ntasks: [a]", sub)
	if err := s.Enqueue(HoldCommand([]string{"1/a"})); err != nil {
		t.Fatal(err)
	}
	s.Tick(context.Background())
	if !s.stalled {
		t.Error("held task with nothing active should stall")
	}
	if err := s.Enqueue(ReleaseCommand([]string{"1/a"})); err != nil {
		t.Fatal(err)
	}
	s.Tick(context.Background())
	if s.stalled {
		t.Error("released task should clear the stall")
	}
}

func TestRun_CompletesWithSimSubmitter(t *testing.T) {
	dir := t.TempDir()
	s := newScheduler(t, "name: w\ninitial_cycle_point: '1'\nfinal_cycle_point: '2'\ntasks: [a, b]\nqueues: {default: {limit: 1}}",
		NewSimSubmitter(time.Millisecond), WithTickInterval(5*time.Millisecond), WithStateDir(dir))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("workflow did not complete before the timeout")
	}
	if s.Pool().Len() != 0 {
		t.Errorf("pool len = %d, want 0", s.Pool().Len())
	}
	if _, err := os.Stat(filepath.Join(dir, flow.StateFileName)); err != nil {
		t.Errorf("flow state not saved: %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newScheduler(t, "name: w\ntasks: [a]", NewSimSubmitter(time.Hour), WithTickInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// Reports after shutdown must not block.
	s.Report(Report{Point: "1", Name: "a", Status: pool.StatusSucceeded})
}

func TestSimSubmitter_Failure(t *testing.T) {
	sub := NewSimSubmitter(0, "a")
	def := mustParse(t, "name: w\ntasks: [a]")
	mgr, _ := flow.NewManager(flow.SchemeNumbers, nil, nil)
	p := pool.New(taskqueue.New(nil, nil, nil), mgr, def.TaskNames(), nil, nil)
	task, _ := p.Spawn("a", "1", nil)

	reports := make(chan Report, 2)
	if err := sub.Submit(context.Background(), task, func(r Report) { reports <- r }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var got []pool.Status
	for range 2 {
		select {
		case r := <-reports:
			got = append(got, r.Status)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for report")
		}
	}
	if diff := cmp.Diff([]pool.Status{pool.StatusRunning, pool.StatusFailed}, got); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
}
