package retryer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/optimaxdev/automerge-semantic-release/internal/amerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRetryerDefaultTimeout(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Second)
	r.backoffInitialInterval = 100 * time.Millisecond
	t.Cleanup(r.Stop)

	origErr := errors.New("err")

	var err error
	assert.Eventually(
		t,
		func() bool {
			err = r.Run(context.Background(), func(context.Context) error {
				return amerr.NewRetryableAnytimeError(origErr)
			}, nil)

			t.Logf("err: %s\n", err)
			return true
		},
		r.defTimeout+time.Second,
		200*time.Millisecond,
	)

	assert.ErrorIsf(t, err, context.DeadlineExceeded, "err: %+v", err)
	assert.ErrorIs(t, err, origErr)
}

func TestRetryAfterInThePast(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Hour)
	r.backoffInitialInterval = 100 * time.Millisecond
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFunc()

	var retryTimes []time.Time

	err := r.Run(ctx, func(context.Context) error {
		retryTimes = append(retryTimes, time.Now())
		return amerr.NewRetryableError(errors.New("err"), time.Now().Add(-time.Second))
	}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(retryTimes), 2)

	for i := 1; i < len(retryTimes); i++ {
		d := retryTimes[i].Sub(retryTimes[i-1])
		require.GreaterOrEqualf(t, int64(d), minInterval(r),
			"time between retry %d and %d is %s, expected >=%dns",
			i-1, i, d, minInterval(r),
		)
	}
}

func TestBackoffInterval(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Hour)
	r.backoffInitialInterval = 500 * time.Millisecond
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()

	var retryTimes []time.Time

	err := r.Run(ctx, func(context.Context) error {
		retryTimes = append(retryTimes, time.Now())
		return amerr.NewRetryableAnytimeError(errors.New("err"))
	}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(retryTimes), 2)
	for i := 1; i < len(retryTimes); i++ {
		d := retryTimes[i].Sub(retryTimes[i-1])
		require.GreaterOrEqualf(t, int64(d), minInterval(r),
			"time between retry %d and %d is %s, expected >=%dns",
			i-1, i, d, minInterval(r),
		)
	}
}

func TestNonRetryableErrorIsReturnedImmediately(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Hour)
	t.Cleanup(r.Stop)

	origErr := errors.New("not found")
	var calls int

	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return origErr
	}, nil)

	assert.Equal(t, origErr, err)
	assert.Equal(t, 1, calls)
}

func TestRetryAfterBeyondTimeoutIsNotRetried(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Second)
	t.Cleanup(r.Stop)

	var calls int

	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return amerr.NewRetryableError(errors.New("rate limit"), time.Now().Add(time.Hour))
	}, nil)

	var retryErr *amerr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestZeroTimeoutDisablesRetries(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(0)
	t.Cleanup(r.Stop)

	var calls int

	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return amerr.NewRetryableAnytimeError(errors.New("503"))
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrySucceeds(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Minute)
	r.backoffInitialInterval = 10 * time.Millisecond
	t.Cleanup(r.Stop)

	var calls int

	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return amerr.NewRetryableAnytimeError(errors.New("502"))
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestStopAbortsPendingRetry(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer(time.Hour)
	r.backoffInitialInterval = time.Hour

	err := r.Run(context.Background(), func(context.Context) error {
		r.Stop()
		return amerr.NewRetryableAnytimeError(errors.New("503"))
	}, nil)

	assert.ErrorIs(t, err, ErrStopped)
}

func minInterval(retryer *Retryer) int64 {
	return int64(math.Floor(float64(retryer.backoffInitialInterval) * (1 - retryer.backoffRandomizationFactor)))
}
