package resumable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdown is pending for n polls, then resolves with err.
type countdown struct {
	n     int
	err   error
	polls int
}

func (c *countdown) Poll() Result {
	c.polls++
	if c.n > 0 {
		c.n--
		return PendingResult()
	}
	if c.err != nil {
		return FailureResult(c.err)
	}
	return SuccessResult()
}

func TestDone(t *testing.T) {
	assert.Equal(t, Success, Done(nil).Poll().Status)
	err := errors.New("boom")
	r := Done(err).Poll()
	assert.Equal(t, Failure, r.Status)
	assert.Equal(t, err, r.Err)
}

func TestOnce_LatchesResult(t *testing.T) {
	calls := 0
	task := Once(func() Result {
		calls++
		if calls < 2 {
			return PendingResult()
		}
		return SuccessResult()
	})
	assert.Equal(t, Pending, task.Poll().Status)
	assert.Equal(t, Success, task.Poll().Status)
	assert.Equal(t, Success, task.Poll().Status)
	assert.Equal(t, 2, calls)
}

func TestFunc_CalledOnEveryPoll(t *testing.T) {
	calls := 0
	task := Func(func() Result {
		calls++
		return SuccessResult()
	})
	assert.Equal(t, Success, task.Poll().Status)
	assert.Equal(t, Success, task.Poll().Status)
	assert.Equal(t, 2, calls)
}

func TestSteps(t *testing.T) {
	first := &countdown{n: 2}
	second := &countdown{n: 1}
	started := 0
	task := Steps(
		func() Task { started++; return first },
		func() Task { started++; return second },
	)
	require.NoError(t, Run(context.Background(), task))
	assert.Equal(t, 2, started)
	assert.Equal(t, 3, first.polls)
	assert.Equal(t, 2, second.polls)
	assert.Equal(t, Success, task.Poll().Status)
}

func TestSteps_StopsOnFailure(t *testing.T) {
	boom := errors.New("nak")
	started := 0
	task := Steps(
		func() Task { started++; return &countdown{err: boom} },
		func() Task { started++; return &countdown{} },
	)
	err := Run(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, started, "second step must not start")
}

func TestSteps_Empty(t *testing.T) {
	assert.Equal(t, Success, Steps().Poll().Status)
}

func TestLimit(t *testing.T) {
	expired := 0
	task := Limit(&countdown{n: 10}, 3, func() { expired++ })
	err := Run(context.Background(), task)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, expired)
	assert.ErrorIs(t, task.Poll().Err, ErrTimeout)
	assert.Equal(t, 1, expired)

	task = Limit(&countdown{n: 2}, 3, func() { expired++ })
	assert.NoError(t, Run(context.Background(), task))
	assert.Equal(t, 1, expired)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, &countdown{n: 1000})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		given    Status
		expected string
	}{
		{Pending, "pending"},
		{Success, "success"},
		{Failure, "failure"},
		{Status(7), "Status(7)"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.given.String())
		})
	}
}
