package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cyclone/internal/config"
	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/flow"
	"github.com/Iron-Ham/cyclone/internal/logging"
	"github.com/Iron-Ham/cyclone/internal/metrics"
	"github.com/Iron-Ham/cyclone/internal/scheduler"
	"github.com/Iron-Ham/cyclone/internal/workflow"
)

const originalFlowDescription = "original flow from initial cycle point"

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow",
	Long: `Run a workflow with the built-in job simulator until every task has
succeeded or the scheduler is interrupted.

Every task is spawned at every cycle point in a new flow. Tasks named with
--trigger are triggered once the scheduler starts, using --flow, --meta and
--wait to pick their flows:

  --flow=all   assign all active flows (the default)
  --flow=new   start a new flow, described by --meta
  --flow=none  assign no flow
  --flow=INT   assign an existing flow; repeat for several

--wait marks the triggered tasks flow-wait. The mark shows in the pool
listing (scheduler.log_pool) and the release log; it does not delay
release, since the scheduler does not spawn downstream tasks itself.

Task items are "point/name", "name.point" or "name", may use glob
patterns, and may end in ":status".`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArray("flow", nil, "flow for triggered tasks: all, new, none or a flow number (repeatable)")
	runCmd.Flags().String("meta", "", "description of the new flow (with --flow=new)")
	runCmd.Flags().Bool("wait", false, "mark triggered tasks to wait for merge with active flows")
	runCmd.Flags().StringArray("trigger", nil, "task item to trigger at start (repeatable)")
	runCmd.Flags().StringArray("hold", nil, "task item to hold at start (repeatable)")
	runCmd.Flags().String("state-dir", "", "state directory (default from state.dir)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flowValues, _ := cmd.Flags().GetStringArray("flow")
	meta, _ := cmd.Flags().GetString("meta")
	wait, _ := cmd.Flags().GetBool("wait")
	sel, err := flow.ParseSelector(flowValues, meta, wait)
	if err != nil {
		return err
	}
	triggers, _ := cmd.Flags().GetStringArray("trigger")
	holds, _ := cmd.Flags().GetStringArray("hold")

	def, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	stateDir, _ := cmd.Flags().GetString("state-dir")
	if stateDir == "" {
		stateDir = cfg.State.ResolveStateDir(def.Name)
	}

	logDir := ""
	if cfg.Logging.Enabled {
		logDir = stateDir
	}
	logger, err := logging.NewLogger(logDir, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus()
	if cfg.Metrics.Enabled {
		collector := metrics.New()
		collector.Attach(bus)
		defer collector.Detach()
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	mgr, err := flow.NewManager(flow.Scheme(cfg.Flow.Scheme), bus, logger)
	if err != nil {
		return err
	}
	if err := restoreFlows(stateDir, mgr); err != nil {
		return err
	}

	opts := []scheduler.Option{
		scheduler.WithTickInterval(cfg.Scheduler.TickInterval()),
		scheduler.WithMaxSubmitParallel(cfg.Scheduler.MaxSubmitParallel),
		scheduler.WithPruneInterval(cfg.Scheduler.PruneIntervalTicks),
		scheduler.WithLogPool(cfg.Scheduler.LogPool),
		scheduler.WithStateDir(stateDir),
		scheduler.WithBus(bus),
		scheduler.WithLogger(logger),
	}
	if cfg.Scheduler.WatchWorkflow {
		watcher, err := workflow.NewWatcher(args[0], logger)
		if err != nil {
			return err
		}
		watcher.Start()
		defer watcher.Stop()
		opts = append(opts, scheduler.WithReloads(watcher.Reloads()))
	}

	submitter := scheduler.NewSimSubmitter(cfg.Simulation.JobDuration(), cfg.Simulation.FailTasks...)
	s := scheduler.New(def, mgr, submitter, opts...)
	if err := s.Start(originalFlowDescription); err != nil {
		return err
	}
	if len(holds) > 0 {
		if err := s.Enqueue(scheduler.HoldCommand(holds)); err != nil {
			return err
		}
	}
	if len(triggers) > 0 {
		if err := s.Enqueue(scheduler.TriggerCommand(triggers, sel)); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Running %s (run %s), state in %s\n", def.Name, s.RunID(), stateDir)
	if err := s.Run(ctx); err != nil {
		return err
	}
	if s.Pool().Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Workflow complete"))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped with %d tasks in the pool\n", s.Pool().Len())
	}
	return nil
}

// restoreFlows loads persisted flow state so flow numbers are never
// reissued across restarts.
func restoreFlows(dir string, mgr *flow.Manager) error {
	state, err := flow.LoadState(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return mgr.Restore(state)
}

// runContext is cmd.Context() with a fallback for commands executed
// without one.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
