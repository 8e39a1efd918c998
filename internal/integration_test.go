// Package internal contains integration tests that drive a complete
// scheduler run through the workflow loader, admission queue, task pool,
// flow manager and metrics collectors together.
package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/metrics"
	"github.com/Iron-Ham/cyclone/internal/scheduler"
	"github.com/Iron-Ham/cyclone/internal/workflow"
)

const forecastWorkflow = `
name: forecast
initial_cycle_point: "1"
final_cycle_point: "3"
tasks: [get_obs, model, post_a, post_b, archive]
families:
  POST: [post_a, post_b]
  PROCESSING: [model, POST]
queues:
  default: {limit: 3}
  processing: {limit: 2, members: [PROCESSING]}
`

type harness struct {
	sched     *scheduler.Scheduler
	flows     *flow.Manager
	collector *metrics.Collector
	bus       *event.Bus
	stateDir  string

	mu       sync.Mutex
	released [][]string
}

func newHarness(t *testing.T, opts ...scheduler.Option) *harness {
	t.Helper()
	def, err := workflow.Parse([]byte(forecastWorkflow))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	h := &harness{bus: event.NewBus(), collector: metrics.New(), stateDir: t.TempDir()}
	h.collector.Attach(h.bus)
	t.Cleanup(h.collector.Detach)

	h.bus.Subscribe(event.TypeTasksReleased, func(e event.Event) {
		if ev, ok := e.(event.TasksReleasedEvent); ok {
			h.mu.Lock()
			h.released = append(h.released, ev.Names)
			h.mu.Unlock()
		}
	})

	h.flows, err = flow.NewManager(flow.SchemeNumbers, h.bus, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	base := []scheduler.Option{
		scheduler.WithTickInterval(5 * time.Millisecond),
		scheduler.WithBus(h.bus),
		scheduler.WithStateDir(h.stateDir),
		scheduler.WithPruneInterval(1),
	}
	h.sched = scheduler.New(def, h.flows, scheduler.NewSimSubmitter(time.Millisecond), append(base, opts...)...)
	if err := h.sched.Start("original"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

// expectCounter compares a counter in the collector's registry with want.
func (h *harness) expectCounter(t *testing.T, name, help, labels string, want int) {
	t.Helper()
	full := "cyclone_" + name
	expected := fmt.Sprintf("# HELP %s %s\n# TYPE %s counter\n%s%s %d\n", full, help, full, full, labels, want)
	if err := testutil.GatherAndCompare(h.collector.Registry(), strings.NewReader(expected), full); err != nil {
		t.Error(err)
	}
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("workflow did not complete; %d tasks left:\n%s", h.sched.Pool().Len(), h.sched.Pool().Dump())
	}
}

func TestWorkflowRunsToCompletion(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	const instances = 15 // 5 tasks at 3 cycle points
	h.expectCounter(t, "tasks_finished_total", "Tasks reaching a final status.", `{status="succeeded"}`, instances)
	h.expectCounter(t, "tasks_released_total", "Tasks released by the admission queue.", "", instances)
	h.expectCounter(t, "flows_started_total", "Flows started.", "", 1)
}

func TestWorkflowRespectsQueueLimits(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, batch := range h.released {
		if len(batch) > 3 {
			t.Errorf("release %d freed %d tasks, default limit is 3: %v", i, len(batch), batch)
		}
		processing := 0
		for _, name := range batch {
			switch name {
			case "model", "post_a", "post_b":
				processing++
			}
		}
		if processing > 2 {
			t.Errorf("release %d freed %d processing tasks, limit is 2: %v", i, processing, batch)
		}
	}
}

func TestReflowMergesAndPersists(t *testing.T) {
	h := newHarness(t)

	sel, err := flow.ParseSelector([]string{flow.FlowNew}, "rerun model", false)
	if err != nil {
		t.Fatalf("ParseSelector: %v", err)
	}
	if err := h.sched.Enqueue(scheduler.TriggerCommand([]string{"2/model"}, sel)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.run(t)

	h.expectCounter(t, "flows_started_total", "Flows started.", "", 2)

	state, err := flow.LoadState(h.stateDir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := state.Flows[2].Description; got != "rerun model" {
		t.Errorf("flow 2 description = %q, want %q", got, "rerun model")
	}

	restored, err := flow.NewManager(flow.SchemeNumbers, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	next, err := restored.Allocate("")
	if err != nil {
		t.Fatal(err)
	}
	if !next.Equal(flow.NewID(3)) {
		t.Errorf("next flow after restart = %v, want 3", next)
	}
}

func TestReloadMidRun(t *testing.T) {
	def, err := workflow.Parse([]byte(forecastWorkflow))
	if err != nil {
		t.Fatal(err)
	}
	reloads := make(chan *workflow.Definition, 1)
	reloads <- def

	h := newHarness(t, scheduler.WithReloads(reloads))
	h.run(t)

	h.expectCounter(t, "workflow_reloads_total", "Workflow definition reloads applied.", "", 1)
	h.expectCounter(t, "tasks_finished_total", "Tasks reaching a final status.", `{status="succeeded"}`, 15)
}
