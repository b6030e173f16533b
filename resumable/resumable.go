// Package resumable models operations that can report "not yet complete" and
// are advanced by repeated polling from a cooperative scheduler.
package resumable

import (
	"context"
	"errors"
	"fmt"
)

var ErrTimeout = errors.New("operation still pending after poll limit")

type Status int

const (
	Pending Status = iota
	Success
	Failure
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Result struct {
	Status Status
	Err    error
}

func (r Result) Done() bool {
	return r.Status != Pending
}

func (r Result) OK() bool {
	return r.Status == Success
}

var pending = Result{Status: Pending}

func PendingResult() Result {
	return pending
}

func SuccessResult() Result {
	return Result{Status: Success}
}

func FailureResult(err error) Result {
	return Result{Status: Failure, Err: err}
}

// Task is a resumable operation. Poll advances it by at most one step and never
// waits. Once Poll returns a resolved result it keeps returning that result.
type Task interface {
	Poll() Result
}

// Func adapts a step function to Task. It is called on every Poll, so the
// function itself must keep returning its resolved result; Once does that for it.
type Func func() Result

func (f Func) Poll() Result {
	return f()
}

type resolved struct {
	res Result
}

func (r resolved) Poll() Result {
	return r.res
}

// Done returns a task that is already resolved: Success for a nil error,
// Failure otherwise.
func Done(err error) Task {
	if err != nil {
		return resolved{res: FailureResult(err)}
	}
	return resolved{res: SuccessResult()}
}

type memo struct {
	step func() Result
	res  Result
}

// Once wraps a step function so its resolved result is latched.
func Once(step func() Result) Task {
	return &memo{step: step, res: pending}
}

func (m *memo) Poll() Result {
	if m.res.Done() {
		return m.res
	}
	m.res = m.step()
	return m.res
}

type steps struct {
	next    []func() Task
	current Task
	res     Result
}

// Steps chains tasks. Each constructor is called only after the previous task
// succeeded, so a later step never touches the bus when an earlier one failed.
func Steps(step ...func() Task) Task {
	return &steps{next: step, res: pending}
}

func (s *steps) Poll() Result {
	if s.res.Done() {
		return s.res
	}
	if s.current == nil {
		if len(s.next) == 0 {
			s.res = SuccessResult()
			return s.res
		}
		s.current = s.next[0]()
		s.next = s.next[1:]
	}
	r := s.current.Poll()
	switch r.Status {
	case Pending:
		return r
	case Failure:
		s.res = r
		return r
	}
	s.current = nil
	if len(s.next) == 0 {
		s.res = r
		return r
	}
	return pending
}

type limit struct {
	task     Task
	left     int
	onExpire func()
	res      Result
}

// Limit fails t with ErrTimeout if it is still pending after polls calls.
// onExpire is called once on expiry, typically to reset the owning accessor.
func Limit(t Task, polls int, onExpire func()) Task {
	return &limit{task: t, left: polls, onExpire: onExpire, res: pending}
}

func (l *limit) Poll() Result {
	if l.res.Done() {
		return l.res
	}
	if l.left <= 0 {
		if l.onExpire != nil {
			l.onExpire()
		}
		l.res = FailureResult(ErrTimeout)
		return l.res
	}
	l.left--
	r := l.task.Poll()
	if r.Done() {
		l.res = r
	}
	return r
}

// Run drives t to completion by polling it with no intervening work.
func Run(ctx context.Context, t Task) error {
	for {
		r := t.Poll()
		switch r.Status {
		case Success:
			return nil
		case Failure:
			if r.Err == nil {
				return errors.New("operation failed")
			}
			return r.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
