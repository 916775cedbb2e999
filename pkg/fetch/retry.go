package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrRetriesExhausted is returned when every attempt failed retryably.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrFatal is returned when an attempt failed in a way retrying cannot fix.
	ErrFatal = errors.New("fatal fetch failure")
)

// OutcomeKind classifies the result of one attempt.
type OutcomeKind int

const (
	// OutcomeOK is a usable response.
	OutcomeOK OutcomeKind = iota
	// OutcomeRetryable is a transient failure worth another attempt.
	OutcomeRetryable
	// OutcomeFatal is a failure that ends the request immediately.
	OutcomeFatal
)

func (kind OutcomeKind) String() string {
	switch kind {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(kind))
	}
}

// Outcome is the result of one attempt: a body on success, a reason otherwise.
type Outcome struct {
	Kind       OutcomeKind
	Body       []byte
	StatusCode int
	Err        error
}

// OK returns a successful outcome.
func OK(body []byte, statusCode int) Outcome {
	return Outcome{Kind: OutcomeOK, Body: body, StatusCode: statusCode}
}

// Retryable returns a transient failure outcome.
func Retryable(reason error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Err: reason}
}

// Fatal returns a non-retryable failure outcome.
func Fatal(reason error) Outcome {
	return Outcome{Kind: OutcomeFatal, Err: reason}
}

// RetryPolicy bounds attempts and sets the sleep between them.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the sleep before the first retry; each later retry doubles it.
	BaseDelay time.Duration

	// NewSchedule overrides the exponential schedule, e.g. with
	// backoff.ZeroBackOff in tests. It is still bounded by MaxAttempts.
	NewSchedule func() backoff.BackOff

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, reason error)
}

// DefaultRetryPolicy returns a policy of DefaultMaxAttempts attempts starting
// at DefaultRetryBaseDelay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultRetryBaseDelay}
}

func (policy RetryPolicy) maxAttempts() int {
	if policy.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return policy.MaxAttempts
}

// Schedule returns a fresh backoff schedule that stops after the last
// permitted retry.
func (policy RetryPolicy) Schedule() backoff.BackOff {
	var schedule backoff.BackOff
	if policy.NewSchedule != nil {
		schedule = policy.NewSchedule()
	} else {
		baseDelay := policy.BaseDelay
		if baseDelay <= 0 {
			baseDelay = DefaultRetryBaseDelay
		}
		schedule = backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(baseDelay),
			backoff.WithRandomizationFactor(0),
			backoff.WithMultiplier(2),
			backoff.WithMaxInterval(DefaultMaxRetryDelay),
			backoff.WithMaxElapsedTime(0),
		)
	}
	return backoff.WithMaxRetries(schedule, uint64(policy.maxAttempts()-1))
}

// Delays lists the sleeps the policy would take between attempts.
func (policy RetryPolicy) Delays() []time.Duration {
	var delays []time.Duration
	schedule := policy.Schedule()
	for delay := schedule.NextBackOff(); delay != backoff.Stop; delay = schedule.NextBackOff() {
		delays = append(delays, delay)
	}
	return delays
}

// Retry runs attempt until it succeeds, fails fatally, or the policy's
// attempts are used up. The returned outcome is the last one observed.
// Cancelling ctx interrupts the backoff sleep.
func Retry(ctx context.Context, policy RetryPolicy, attempt func(ctx context.Context, attemptNumber int) Outcome) (Outcome, error) {
	schedule := policy.Schedule()

	for attemptNumber := 1; ; attemptNumber++ {
		outcome := attempt(ctx, attemptNumber)

		switch outcome.Kind {
		case OutcomeOK:
			return outcome, nil
		case OutcomeFatal:
			return outcome, fmt.Errorf("%w: %w", ErrFatal, outcome.Err)
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return outcome, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attemptNumber, outcome.Err)
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attemptNumber, delay, outcome.Err)
		}
		if err := sleepContext(ctx, delay); err != nil {
			return outcome, fmt.Errorf("retry of attempt %d interrupted: %w", attemptNumber, err)
		}
	}
}
