// Package metrics exposes scheduler activity as Prometheus metrics. The
// collectors are fed from the event bus, so nothing in the scheduler core
// depends on this package.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/logging"
)

// MetricPath is where Serve exposes the metrics.
const MetricPath = "/metrics"

const namespace = "cyclone"

// Collector holds the scheduler metrics in a dedicated registry.
type Collector struct {
	registry *prometheus.Registry

	tasksQueued   prometheus.Counter
	tasksReleased prometheus.Counter
	queueDepth    prometheus.Gauge
	submissions   *prometheus.CounterVec
	tasksFinished *prometheus.CounterVec
	flowsStarted  prometheus.Counter
	flowMerges    prometheus.Counter
	atomsPruned   prometheus.Counter
	reloads       prometheus.Counter
	tickDuration  prometheus.Histogram
	poolSize      prometheus.Gauge
	activeTasks   prometheus.Gauge

	bus    *event.Bus
	subIDs []string
}

// New creates a Collector with its own registry, which also carries the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_queued_total", Help: "Tasks added to the admission queue."}),
		tasksReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_released_total", Help: "Tasks released by the admission queue."}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth", Help: "Tasks waiting in the admission queue."}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_submissions_total", Help: "Job submissions by result."}, []string{"result"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_finished_total", Help: "Tasks reaching a final status."}, []string{"status"}),
		flowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "flows_started_total", Help: "Flows started."}),
		flowMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "flow_merges_total", Help: "Flow merges on task spawn."}),
		atomsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "flow_atoms_pruned_total", Help: "Redundant flow atoms stripped by pruning."}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "workflow_reloads_total", Help: "Workflow definition reloads applied."}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds", Help: "Duration of scheduler ticks.", Buckets: prometheus.DefBuckets}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_size", Help: "Task instances in the pool."}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_tasks", Help: "Task instances preparing, submitted or running."}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.tasksQueued, c.tasksReleased, c.queueDepth, c.submissions, c.tasksFinished,
		c.flowsStarted, c.flowMerges, c.atomsPruned, c.reloads,
		c.tickDuration, c.poolSize, c.activeTasks,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Attach subscribes the collectors to bus.
func (c *Collector) Attach(bus *event.Bus) {
	c.bus = bus
	c.subIDs = append(c.subIDs,
		bus.Subscribe(event.TypeTaskQueued, func(event.Event) { c.tasksQueued.Inc() }),
		bus.Subscribe(event.TypeTasksReleased, func(e event.Event) {
			if ev, ok := e.(event.TasksReleasedEvent); ok {
				c.tasksReleased.Add(float64(len(ev.Names)))
			}
		}),
		bus.Subscribe(event.TypeQueueDepthChanged, func(e event.Event) {
			if ev, ok := e.(event.QueueDepthChangedEvent); ok {
				c.queueDepth.Set(float64(ev.Pending))
			}
		}),
		bus.Subscribe(event.TypeTaskSubmitted, func(e event.Event) {
			if ev, ok := e.(event.TaskSubmittedEvent); ok {
				result := "success"
				if !ev.Success {
					result = "failure"
				}
				c.submissions.WithLabelValues(result).Inc()
			}
		}),
		bus.Subscribe(event.TypeTaskFinished, func(e event.Event) {
			if ev, ok := e.(event.TaskFinishedEvent); ok {
				c.tasksFinished.WithLabelValues(ev.Status).Inc()
			}
		}),
		bus.Subscribe(event.TypeFlowStarted, func(event.Event) { c.flowsStarted.Inc() }),
		bus.Subscribe(event.TypeFlowsMerged, func(event.Event) { c.flowMerges.Inc() }),
		bus.Subscribe(event.TypeFlowsPruned, func(e event.Event) {
			if ev, ok := e.(event.FlowsPrunedEvent); ok {
				c.atomsPruned.Add(float64(len(ev.Atoms)))
			}
		}),
		bus.Subscribe(event.TypeWorkflowReloaded, func(event.Event) { c.reloads.Inc() }),
		bus.Subscribe(event.TypeTickCompleted, func(e event.Event) {
			if ev, ok := e.(event.TickCompletedEvent); ok {
				c.tickDuration.Observe(ev.Duration.Seconds())
				c.poolSize.Set(float64(ev.PoolSize))
				c.activeTasks.Set(float64(ev.Active))
			}
		}),
	)
}

// Detach removes every subscription made by Attach.
func (c *Collector) Detach() {
	if c.bus == nil {
		return
	}
	for _, id := range c.subIDs {
		c.bus.Unsubscribe(id)
	}
	c.subIDs = nil
	c.bus = nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes the metrics on listen until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, listen string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle(MetricPath, c.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("metrics listening", "addr", listen, "path", MetricPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
