package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestPolicy_NextDelay(t *testing.T) {
	p := Policy{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, 500*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, time.Second, p.NextDelay(2))
	assert.Equal(t, 2*time.Second, p.NextDelay(3))
	assert.Equal(t, 8*time.Second, p.NextDelay(5))
	// Clamped at the ceiling.
	assert.Equal(t, 10*time.Second, p.NextDelay(6))
	assert.Equal(t, 10*time.Second, p.NextDelay(20))
}

func TestPolicy_NextDelay_Defaults(t *testing.T) {
	var p Policy
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), zap.NewNop(), "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), fastPolicy(4), zap.NewNop(), "broken", func(ctx context.Context) error {
		calls++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 4, calls)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialDelay: time.Minute, BackoffFactor: 2}, zap.NewNop(), "slow", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail once")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
