package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fast, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("down")
	calls := 0
	err := Retry(context.Background(), "op", fast, func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentStops(t *testing.T) {
	notFound := errors.New("404")
	calls := 0
	err := Retry(context.Background(), "op", fast, func() error {
		calls++
		return Permanent(notFound)
	})
	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "op", fast, func() error { return errors.New("x") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 2*time.Second, computeDelay(5, cfg))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
