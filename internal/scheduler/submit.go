package scheduler

import (
	"context"
	"time"

	"github.com/Iron-Ham/cyclone/internal/pool"
)

// Report is a job status message for one task instance.
type Report struct {
	Point  string
	Name   string
	Status pool.Status
}

// Submitter submits the job of a released task. Implementations must not
// block for the life of the job: later status changes are delivered
// through report, which is safe to call from any goroutine.
type Submitter interface {
	Submit(ctx context.Context, task *pool.TaskProxy, report func(Report)) error
}

// SimSubmitter is a Submitter that runs no jobs. Every submission starts
// running at once and finishes after Duration, failing for task names in
// Fail.
type SimSubmitter struct {
	Duration time.Duration
	Fail     map[string]bool
}

// NewSimSubmitter creates a SimSubmitter whose jobs take d.
func NewSimSubmitter(d time.Duration, fail ...string) *SimSubmitter {
	s := &SimSubmitter{Duration: d, Fail: make(map[string]bool, len(fail))}
	for _, name := range fail {
		s.Fail[name] = true
	}
	return s
}

// Submit implements Submitter.
func (s *SimSubmitter) Submit(ctx context.Context, task *pool.TaskProxy, report func(Report)) error {
	point, name := task.Point(), task.Name()
	final := pool.StatusSucceeded
	if s.Fail[name] {
		final = pool.StatusFailed
	}

	go func() {
		report(Report{Point: point, Name: name, Status: pool.StatusRunning})
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.Duration):
		}
		report(Report{Point: point, Name: name, Status: final})
	}()
	return nil
}
