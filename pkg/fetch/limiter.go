package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits at most burst requests within any window of
// burst/rate seconds. It keeps the timestamps of recently admitted requests
// and is safe for concurrent use.
type RateLimiter struct {
	mutex      sync.Mutex
	rate       float64
	burst      int
	window     time.Duration
	timestamps []time.Time
	now        func() time.Time
}

// NewRateLimiter creates a limiter for the given sustained rate. A burst of
// zero or less defaults to max(1, int(rate)); a rate of zero or less to
// DefaultRequestsPerSecond.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = max(1, int(requestsPerSecond))
	}

	return &RateLimiter{
		rate:   requestsPerSecond,
		burst:  burst,
		window: time.Duration(float64(burst) / requestsPerSecond * float64(time.Second)),
		now:    time.Now,
	}
}

// Window returns the span over which burst requests are admitted.
func (limiter *RateLimiter) Window() time.Duration {
	return limiter.window
}

// Wait blocks until a request may be issued and records it. It returns how
// long the caller was held, or the context's error if cancelled first.
func (limiter *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	start := limiter.now()

	for {
		limiter.mutex.Lock()
		now := limiter.now()
		limiter.evict(now)
		if len(limiter.timestamps) < limiter.burst {
			limiter.timestamps = append(limiter.timestamps, now)
			limiter.mutex.Unlock()
			return now.Sub(start), nil
		}
		waitDuration := limiter.timestamps[0].Add(limiter.window).Sub(now)
		limiter.mutex.Unlock()

		if err := sleepContext(ctx, waitDuration); err != nil {
			return limiter.now().Sub(start), err
		}
	}
}

// evict drops timestamps that have left the window. Callers hold the mutex.
func (limiter *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-limiter.window)
	expired := 0
	for expired < len(limiter.timestamps) && !limiter.timestamps[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		limiter.timestamps = append(limiter.timestamps[:0], limiter.timestamps[expired:]...)
	}
}

// sleepContext sleeps for duration or until ctx is done.
func sleepContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
