// Package retryer runs operations repeatedly until they succeed, fail with an
// error that is not retryable or a timeout expires.
package retryer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/amerr"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

const DefaultTimeout = 2 * time.Minute

// ErrStopped is returned by Run when the Retryer was stopped before the
// operation succeeded.
var ErrStopped = errors.New("retryer stopped")

func logFieldOperationResult(val string) zap.Field {
	return zap.String("operation_result", val)
}

// Retryer executes a function repeatedly until it was successful or cancel
// condition happened.
type Retryer struct {
	logger *zap.Logger

	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64

	shutdownChan chan struct{}
}

// NewRetryer returns a Retryer that gives up retrying after timeout.
// If timeout is 0, operations are executed exactly once.
func NewRetryer(timeout time.Duration) *Retryer {
	return &Retryer{
		logger:                     zap.L().Named("retryer"),
		defTimeout:                 timeout,
		backoffInitialInterval:     time.Second,
		backoffRandomizationFactor: backoff.DefaultRandomizationFactor,
		shutdownChan:               make(chan struct{}),
	}
}

// Run executes fn until it was successful, it returned an error that
// does not wrap amerr.RetryableError, the timeout of the retryer expired or
// the execution was aborted via the context.
// When the timeout expires, the returned error wraps
// context.DeadlineExceeded and the last error returned by fn.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	logger := r.logger.With(logF...)

	if r.defTimeout <= 0 {
		return fn(ctx)
	}

	ctx, cancelFn := context.WithTimeout(ctx, r.defTimeout)
	defer cancelFn()

	deadline, _ := ctx.Deadline()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	var tryCnt uint
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			logger.Info(
				"giving up retrying operation",
				logfields.Event("operation_retry_timeout"),
				logFieldOperationResult("cancelled"),
				zap.Uint("try_count", tryCnt),
				zap.Duration("retry_timeout", r.defTimeout),
				zap.NamedError("last_error", lastErr),
			)

			if lastErr == nil {
				return ctx.Err()
			}

			return fmt.Errorf("%w, last error: %w", ctx.Err(), lastErr)

		case <-r.shutdownChan:
			logger.Info(
				"retryer terminating, operation not executed",
				logfields.Event("operation_execution_cancelled_retryer_terminated"),
				logFieldOperationResult("cancelled"),
			)

			return ErrStopped

		case <-retryTimer.C:
			tryCnt++
			logger := logger.With(zap.Uint("try_count", tryCnt))

			err := fn(ctx)
			if err == nil {
				if tryCnt > 1 {
					logger.Info(
						"operation succeeded after retrying",
						logfields.Event("operation_retry_succeeded"),
						logFieldOperationResult("success"),
					)
				}

				return nil
			}

			lastErr = err
			logger = logger.With(zap.Error(err))

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Debug(
					"operation cancelled",
					logfields.Event("operation_cancelled"),
					logFieldOperationResult("cancelled"),
				)

				return err
			}

			var retryError *amerr.RetryableError
			if !errors.As(err, &retryError) {
				return err
			}

			if retryError.After.After(deadline) {
				logger.Warn(
					"operation failed, next possible retry time is after timeout expiration",
					logfields.Event("operation_failed"),
					logFieldOperationResult("failure"),
					zap.Time("earliest_allowed_retry", retryError.After),
				)

				return err
			}

			var retryIn time.Duration
			if retryError.After.IsZero() {
				retryIn = bo.NextBackOff()
			} else {
				retryIn = max(time.Until(retryError.After), bo.NextBackOff())
			}

			retryTimer.Reset(retryIn)

			logger.Info(
				"operation failed, retry scheduled",
				logfields.Event("operation_retry_scheduled"),
				zap.Duration("retry_in", retryIn),
				zap.Duration("age", bo.GetElapsedTime()),
				zap.Duration("retry_timeout", r.defTimeout),
			)
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	r.logger.Debug("retryer terminating", logfields.Event("retryer_terminating"))

	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}
