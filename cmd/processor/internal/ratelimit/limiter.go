package ratelimit

import (
	"context"
	"sync"
	"time"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limiter allows at most maxCalls within a sliding window. A caller that
// would exceed the window blocks until the oldest call ages out.
type Limiter struct {
	maxCalls int
	window   time.Duration
	clock    Clock

	mu    sync.Mutex
	calls []time.Time
}

func NewLimiter(maxCalls int, window time.Duration, clock Clock) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		clock:    clock,
	}
}

// Acquire blocks until a call slot is available, then records the call.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait > 0 {
			l.clock.Sleep(wait)
		}
	}
}

// prune drops recorded calls older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	l.calls = l.calls[i:]
}
