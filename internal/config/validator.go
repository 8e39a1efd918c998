package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.tick_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidFlowSchemes returns the list of valid flow allocation schemes
func ValidFlowSchemes() []string {
	return []string{"numbers", "labels"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateFlow()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateSimulation()...)

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.TickIntervalMs < 10 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.tick_interval_ms",
			Value:   c.Scheduler.TickIntervalMs,
			Message: "must be at least 10",
		})
	}

	const maxSubmitParallelLimit = 256
	if c.Scheduler.MaxSubmitParallel < 1 || c.Scheduler.MaxSubmitParallel > maxSubmitParallelLimit {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_submit_parallel",
			Value:   c.Scheduler.MaxSubmitParallel,
			Message: fmt.Sprintf("must be between 1 and %d", maxSubmitParallelLimit),
		})
	}

	if c.Scheduler.PruneIntervalTicks < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.prune_interval_ticks",
			Value:   c.Scheduler.PruneIntervalTicks,
			Message: "must be non-negative (0 disables pruning)",
		})
	}

	return errors
}

// validateFlow validates the FlowConfig
func (c *Config) validateFlow() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidFlowSchemes(), c.Flow.Scheme) {
		errors = append(errors, ValidationError{
			Field:   "flow.scheme",
			Value:   c.Flow.Scheme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidFlowSchemes(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if !c.Metrics.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
		errors = append(errors, ValidationError{
			Field:   "metrics.listen",
			Value:   c.Metrics.Listen,
			Message: "must be a host:port address",
		})
	}

	return errors
}

// validateSimulation validates the SimulationConfig
func (c *Config) validateSimulation() []ValidationError {
	var errors []ValidationError

	if c.Simulation.JobDurationMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulation.job_duration_ms",
			Value:   c.Simulation.JobDurationMs,
			Message: "must be non-negative",
		})
	}

	return errors
}
