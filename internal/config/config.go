package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cyclone configuration
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Flow       FlowConfig       `mapstructure:"flow"`
	State      StateConfig      `mapstructure:"state"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// SchedulerConfig controls the main loop
type SchedulerConfig struct {
	// TickIntervalMs is the time between scheduling ticks (default: 1000)
	TickIntervalMs int `mapstructure:"tick_interval_ms"`
	// MaxSubmitParallel bounds concurrent job submissions per tick (default: 8)
	MaxSubmitParallel int `mapstructure:"max_submit_parallel"`
	// PruneIntervalTicks prunes flow identifiers every N ticks; 0 disables (default: 10)
	PruneIntervalTicks int `mapstructure:"prune_interval_ticks"`
	// LogPool writes the task pool content to the log every tick (default: false)
	LogPool bool `mapstructure:"log_pool"`
	// WatchWorkflow reloads the workflow definition when it changes (default: true)
	WatchWorkflow bool `mapstructure:"watch_workflow"`
}

// FlowConfig controls flow identity allocation
type FlowConfig struct {
	// Scheme is "numbers" or the legacy "labels" (default: "numbers")
	Scheme string `mapstructure:"scheme"`
}

// StateConfig controls where run state is kept
type StateConfig struct {
	// Dir holds flows.json and scheduler.log. If empty, defaults to
	// "cyclone" under the user's state directory. Supports ~ expansion.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls scheduler logging
type LoggingConfig struct {
	// Enabled writes the scheduler log to the state directory; when false logs go to stderr (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled starts the metrics HTTP server (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Listen is the address to serve /metrics on (default: ":9464")
	Listen string `mapstructure:"listen"`
}

// SimulationConfig controls the built-in job submitter
type SimulationConfig struct {
	// JobDurationMs is how long each simulated job runs (default: 2000)
	JobDurationMs int `mapstructure:"job_duration_ms"`
	// FailTasks lists task names whose simulated jobs fail
	FailTasks []string `mapstructure:"fail_tasks"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TickIntervalMs:     1000,
			MaxSubmitParallel:  8,
			PruneIntervalTicks: 10,
			LogPool:            false,
			WatchWorkflow:      true,
		},
		Flow: FlowConfig{
			Scheme: "numbers",
		},
		State: StateConfig{
			Dir: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9464",
		},
		Simulation: SimulationConfig{
			JobDurationMs: 2000,
			FailTasks:     []string{},
		},
	}
}

// TickInterval returns the tick interval as a time.Duration
func (c *SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// JobDuration returns the simulated job duration as a time.Duration
func (c *SimulationConfig) JobDuration() time.Duration {
	return time.Duration(c.JobDurationMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.tick_interval_ms", defaults.Scheduler.TickIntervalMs)
	viper.SetDefault("scheduler.max_submit_parallel", defaults.Scheduler.MaxSubmitParallel)
	viper.SetDefault("scheduler.prune_interval_ticks", defaults.Scheduler.PruneIntervalTicks)
	viper.SetDefault("scheduler.log_pool", defaults.Scheduler.LogPool)
	viper.SetDefault("scheduler.watch_workflow", defaults.Scheduler.WatchWorkflow)

	// Flow defaults
	viper.SetDefault("flow.scheme", defaults.Flow.Scheme)

	// State defaults
	viper.SetDefault("state.dir", defaults.State.Dir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.listen", defaults.Metrics.Listen)

	// Simulation defaults
	viper.SetDefault("simulation.job_duration_ms", defaults.Simulation.JobDurationMs)
	viper.SetDefault("simulation.fail_tasks", defaults.Simulation.FailTasks)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cyclone")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cyclone"
	}
	return filepath.Join(home, ".config", "cyclone")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ResolveStateDir returns the state directory for a workflow. An explicit
// state.dir wins; otherwise $XDG_STATE_HOME/cyclone/<workflow> or
// ~/.local/state/cyclone/<workflow>.
func (s *StateConfig) ResolveStateDir(workflow string) string {
	if s.Dir != "" {
		return filepath.Join(expandTilde(s.Dir), workflow)
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cyclone", workflow)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cyclone", workflow)
	}
	return filepath.Join(home, ".local", "state", "cyclone", workflow)
}

func expandTilde(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
