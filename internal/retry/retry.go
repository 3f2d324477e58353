package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Policy defines bounded exponential backoff parameters.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultPolicy matches the commit-visibility lag tolerance used when
// backfilling payment records after an intent confirmation: five attempts
// starting at 500ms, doubling each time.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}
}

// NextDelay returns the delay before a given attempt (1-based), clamped.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// Do runs op until it succeeds, attempts are exhausted, or the context ends.
// Every failed attempt is logged so the outcome is observable rather than a
// fire-and-forget closure.
func Do(ctx context.Context, policy Policy, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			if attempt > 1 {
				logger.Info("retryable operation succeeded",
					zap.String("operation", name),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		logger.Warn("retryable operation failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.NextDelay(attempt)):
		}
	}

	logger.Error("retryable operation exhausted attempts",
		zap.String("operation", name),
		zap.Error(err),
	)
	return err
}
