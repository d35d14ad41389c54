package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/prospector/internal/common"
)

// RetryPolicy bounds how often a transient collaborator failure is retried
// before the unit of work is marked failed.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	BackoffMax  time.Duration
}

// NewRetryPolicy builds a policy from configuration with defaults of three
// attempts and a 1s..10s exponential backoff window.
func NewRetryPolicy(cfg *common.WorkersConfig) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     cfg.RetryBackoffDuration(),
		BackoffMax:  cfg.RetryBackoffMaxDuration(),
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Backoff <= 0 {
		policy.Backoff = time.Second
	}
	if policy.BackoffMax < policy.Backoff {
		policy.BackoffMax = 10 * time.Second
	}
	return policy
}

// Delay returns the backoff before the given retry attempt (1-based), doubled
// per attempt, capped, with ±20% jitter to spread concurrent retries.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.Backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.BackoffMax {
			delay = p.BackoffMax
			break
		}
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(delay) * jitter)
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. Permanent
// errors and context cancellation stop retrying immediately; the last error is
// returned when the budget is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !common.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
