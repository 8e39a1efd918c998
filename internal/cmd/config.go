package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/cyclone/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify cyclone configuration",
	Long: `View or modify cyclone configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cyclone config set scheduler.tick_interval_ms 500
  cyclone config set flow.scheme labels

Valid keys:
  scheduler.tick_interval_ms      - Time between scheduling ticks
  scheduler.max_submit_parallel   - Concurrent job submissions per tick
  scheduler.prune_interval_ticks  - Ticks between flow pruning passes (0 disables)
  scheduler.log_pool              - Log the task pool every tick (true/false)
  scheduler.watch_workflow        - Reload the workflow file on change (true/false)
  flow.scheme                     - Flow allocation scheme
                                    Options: numbers, labels
  state.dir                       - Base directory for run state
  logging.enabled                 - Write scheduler.log to the state directory (true/false)
  logging.level                   - Options: debug, info, warn, error
  metrics.enabled                 - Serve Prometheus metrics (true/false)
  metrics.listen                  - Metrics listen address (host:port)
  simulation.job_duration_ms      - Simulated job run time`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cyclone/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
	}

	fmt.Fprintln(out, "scheduler:")
	fmt.Fprintf(out, "  tick_interval_ms: %d\n", cfg.Scheduler.TickIntervalMs)
	fmt.Fprintf(out, "  max_submit_parallel: %d\n", cfg.Scheduler.MaxSubmitParallel)
	fmt.Fprintf(out, "  prune_interval_ticks: %d\n", cfg.Scheduler.PruneIntervalTicks)
	fmt.Fprintf(out, "  log_pool: %v\n", cfg.Scheduler.LogPool)
	fmt.Fprintf(out, "  watch_workflow: %v\n", cfg.Scheduler.WatchWorkflow)

	fmt.Fprintln(out, "flow:")
	fmt.Fprintf(out, "  scheme: %s\n", cfg.Flow.Scheme)

	fmt.Fprintln(out, "state:")
	fmt.Fprintf(out, "  dir: %s\n", cfg.State.Dir)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)

	fmt.Fprintln(out, "metrics:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(out, "  listen: %s\n", cfg.Metrics.Listen)

	fmt.Fprintln(out, "simulation:")
	fmt.Fprintf(out, "  job_duration_ms: %d\n", cfg.Simulation.JobDurationMs)
	fmt.Fprintf(out, "  fail_tasks: [%s]\n", strings.Join(cfg.Simulation.FailTasks, ", "))

	return nil
}

// settableKeys maps each key accepted by "config set" to its value type.
var settableKeys = map[string]string{
	"scheduler.tick_interval_ms":     "int",
	"scheduler.max_submit_parallel":  "int",
	"scheduler.prune_interval_ticks": "int",
	"scheduler.log_pool":             "bool",
	"scheduler.watch_workflow":       "bool",
	"flow.scheme":                    "string",
	"state.dir":                      "string",
	"logging.enabled":                "bool",
	"logging.level":                  "string",
	"metrics.enabled":                "bool",
	"metrics.listen":                 "string",
	"simulation.job_duration_ms":     "int",
}

// parseConfigValue checks value against the type and allowed values of key.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'cyclone config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	}

	switch key {
	case "flow.scheme":
		if !slices.Contains(config.ValidFlowSchemes(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidFlowSchemes(), ", "))
		}
	case "logging.level":
		if !slices.Contains(config.ValidLogLevels(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# cyclone configuration

# Main loop
scheduler:
  # Time between scheduling ticks in milliseconds
  tick_interval_ms: 1000
  # Maximum concurrent job submissions per tick
  max_submit_parallel: 8
  # Prune redundant flow numbers every N ticks (0 disables)
  prune_interval_ticks: 10
  # Log the task pool content every tick (debugging only)
  log_pool: false
  # Reload the workflow file when it changes
  watch_workflow: true

# Flow identity
flow:
  # numbers, or labels for compatibility with letter-labelled flows
  scheme: numbers

# Run state (flows.json, scheduler.log)
state:
  # Empty means $XDG_STATE_HOME/cyclone/<workflow>
  dir: ""

logging:
  enabled: true
  level: info

# Prometheus metrics
metrics:
  enabled: false
  listen: ":9464"

# Built-in job simulator
simulation:
  job_duration_ms: 2000
  fail_tasks: []
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'cyclone config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: CYCLONE_* (e.g., CYCLONE_SCHEDULER_TICK_INTERVAL_MS)")
	return nil
}
