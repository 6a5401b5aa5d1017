package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Executor runs units of work under the rate limit and retries failures
// with exponential backoff. Exhausting retries surfaces the last error.
type Executor struct {
	limiter    *Limiter
	maxRetries int
	retryBase  time.Duration
	clock      Clock
	logger     *zap.Logger
}

func NewExecutor(limiter *Limiter, maxRetries int, retryBase time.Duration, clock Clock, logger *zap.Logger) *Executor {
	return &Executor{
		limiter:    limiter,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		clock:      clock,
		logger:     logger,
	}
}

// Do executes fn under the rate limit. On failure it retries up to
// maxRetries times, sleeping retryBase * 2^attempt between attempts.
// Retries are not cancelled mid-backoff; the context is checked between
// attempts only.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryBase * (1 << (attempt - 1))
			e.logger.Warn("Retrying after failure",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			e.clock.Sleep(delay)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.limiter.Acquire(ctx); err != nil {
			return err
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	e.logger.Error("Retries exhausted", zap.String("op", op), zap.Error(lastErr))
	return lastErr
}
