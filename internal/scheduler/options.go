package scheduler

import (
	"time"

	"github.com/Iron-Ham/cyclone/internal/event"
	"github.com/Iron-Ham/cyclone/internal/logging"
	"github.com/Iron-Ham/cyclone/internal/workflow"
)

const (
	defaultTickInterval      = time.Second
	defaultMaxSubmitParallel = 8
	defaultPruneEvery        = 10
	commandBuffer            = 64
	reportBuffer             = 1024
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the time between ticks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithMaxSubmitParallel bounds concurrent job submissions per tick.
func WithMaxSubmitParallel(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxSubmit = n
		}
	}
}

// WithPruneInterval prunes flows every n ticks. Zero disables pruning.
func WithPruneInterval(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.pruneEvery = n
		}
	}
}

// WithLogPool logs the pool content at the end of every tick.
func WithLogPool(enabled bool) Option {
	return func(s *Scheduler) { s.logPool = enabled }
}

// WithStateDir persists flow state under dir.
func WithStateDir(dir string) Option {
	return func(s *Scheduler) { s.stateDir = dir }
}

// WithBus publishes scheduler events on bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReloads applies definitions received on ch at the start of a tick.
func WithReloads(ch <-chan *workflow.Definition) Option {
	return func(s *Scheduler) { s.reloads = ch }
}
