// Package scheduler interleaves resumable tasks on a single goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/i2cdev/resumable"
)

type entry struct {
	name    string
	task    resumable.Task
	result  resumable.Result
	polls   int
	onDone  func(resumable.Result)
	restart func() resumable.Task
}

// Scheduler polls every pending task once per Step, in the order they were added.
// It is not safe for concurrent use; all tasks run on the caller's goroutine.
type Scheduler struct {
	entries []*entry
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Go adds a task. onDone, if not nil, is called once with the task's result.
func (s *Scheduler) Go(name string, task resumable.Task, onDone func(resumable.Result)) {
	s.entries = append(s.entries, &entry{name: name, task: task, onDone: onDone, result: resumable.PendingResult()})
}

// Loop adds a task that is recreated by next every time it resolves, until the
// scheduler stops. onDone sees every result.
func (s *Scheduler) Loop(name string, next func() resumable.Task, onDone func(resumable.Result)) {
	s.entries = append(s.entries, &entry{name: name, task: next(), restart: next, onDone: onDone, result: resumable.PendingResult()})
}

// Step polls each pending task once and returns how many are still pending.
func (s *Scheduler) Step() int {
	pending := 0
	for _, e := range s.entries {
		if e.result.Done() {
			continue
		}
		e.polls++
		r := e.task.Poll()
		if !r.Done() {
			pending++
			continue
		}
		s.logger.Debug("task resolved", "task", e.name, "status", r.Status, "polls", e.polls, "error", r.Err)
		if e.onDone != nil {
			e.onDone(r)
		}
		if e.restart != nil {
			e.task = e.restart()
			e.polls = 0
			pending++
			continue
		}
		e.result = r
	}
	return pending
}

// Run steps until no task is pending or ctx is done. Failed tasks are joined
// into the returned error.
func (s *Scheduler) Run(ctx context.Context) error {
	for s.Step() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return s.Err()
}

func (s *Scheduler) Err() error {
	var errs []error
	for _, e := range s.entries {
		if e.result.Status == resumable.Failure {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, e.result.Err))
		}
	}
	return errors.Join(errs...)
}

// Result returns the result of the named task, Pending if it has not resolved.
func (s *Scheduler) Result(name string) resumable.Result {
	for _, e := range s.entries {
		if e.name == name {
			return e.result
		}
	}
	return resumable.PendingResult()
}
