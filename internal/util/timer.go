package util

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
)

// RetryTimer is interface retry
type RetryTimer interface {
	Run(ctx context.Context, callback RetryTimerCallback) error
}

// RetryTimerCallback is callback function type for RetryTimer. Returning
// exit=true stops retrying successfully.
type RetryTimerCallback func(seq int) (exit bool, err error)

// RetryTimerFactory is constructor type of RetryTimer
type RetryTimerFactory func(limit int) RetryTimer

// ErrRetryLimitExceeded indicates error message for exceeding limit of RetryTimer
var ErrRetryLimitExceeded = errors.New("Limit of RetryTimer exceeded")

type expRetryTimer struct {
	limit      int
	retryCount int
	maxWait    time.Duration
}

// NewExpRetryTimer is constructor of expRetryTimer (Exponential backoff timer)
func NewExpRetryTimer(limit int) RetryTimer {
	return &expRetryTimer{limit: limit, maxWait: 2 * time.Second}
}

// NewNoWaitRetryTimer retries without sleep. It's for testing.
func NewNoWaitRetryTimer(limit int) RetryTimer {
	return &expRetryTimer{limit: limit}
}

func (x *expRetryTimer) Run(ctx context.Context, callback RetryTimerCallback) error {
	for i := 0; i < x.limit; i++ {
		exit, err := callback(i)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(x.calcWaitTime()):
		}
	}
	return ErrRetryLimitExceeded
}

func (x *expRetryTimer) calcWaitTime() time.Duration {
	if x.maxWait == 0 {
		return 0
	}

	wait := math.Pow(2.0, float64(x.retryCount))/64 + 0.5
	if limit := x.maxWait.Seconds(); wait > limit {
		wait = limit
	}
	x.retryCount++
	return time.Millisecond * time.Duration(wait*1000)
}
