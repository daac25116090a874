// Package retry provides a bounded retry loop for operations that can fail
// temporarily.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/boterr"
	"github.com/osbuild/fedora-bot/internal/logfields"
)

const (
	defTimeout                = 5 * time.Minute
	defBackoffInitialInterval = 5 * time.Second
)

// Retryer executes a function repeatedly until it was successful, it failed
// with a non-retryable error or the retry timeout expired.
type Retryer struct {
	logger                 *zap.Logger
	defTimeout             time.Duration
	backoffInitialInterval time.Duration
	shutdownChan           chan struct{}
}

func NewRetryer() *Retryer {
	return &Retryer{
		logger:                 zap.L().Named("retryer"),
		defTimeout:             defTimeout,
		backoffInitialInterval: defBackoffInitialInterval,
		shutdownChan:           make(chan struct{}),
	}
}

// Run executes fn until it was successful, it returned an error that does
// not wrap boterr.RetryableError, the retry timeout expired or the execution
// was aborted via the context.
// If the timeout expires the returned error wraps context.DeadlineExceeded.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	ctx, cancel := context.WithTimeout(ctx, r.defTimeout)
	defer cancel()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval

	for {
		tryCnt++
		logger := r.logger.With(logF...).With(zap.Uint("try_count", tryCnt))

		select {
		case <-ctx.Done():
			logger.Info(
				"operation cancelled",
				logfields.Event("operation_cancelled"),
			)

			return ctx.Err()

		case <-retryTimer.C:
			err := fn(ctx)
			if err != nil {
				var retryError *boterr.RetryableError

				logger = logger.With(zap.Error(err))

				if errors.Is(err, context.Canceled) {
					logger.Info(
						"operation cancelled",
						logfields.Event("operation_cancelled"),
					)

					return err
				}

				if errors.As(err, &retryError) {
					retryIn := bo.NextBackOff()
					if !retryError.After.IsZero() {
						if until := time.Until(retryError.After); until > retryIn {
							retryIn = until
						}
					}

					retryTimer.Reset(retryIn)
					logger.Info(
						"operation failed, retry scheduled",
						logfields.Event("operation_retry_scheduled"),
						zap.Duration("retry_in", retryIn),
						zap.Duration("age", bo.GetElapsedTime()),
					)

					continue
				}

				logger.Warn(
					"operation failed, not retryable",
					logfields.Event("operation_failed"),
				)

				return err
			}

			return nil

		case <-r.shutdownChan:
			logger.Info(
				"terminating, operation not executed",
				logfields.Event("operation_cancelled_shutdown"),
			)

			return nil
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
