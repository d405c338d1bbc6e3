package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryerStopsAfterMaxRetries(t *testing.T) {
	r := &retryer{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond, multiplier: 2.0}

	calls := 0
	err := r.retry(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial attempt + 3 retries
	assert.Contains(t, err.Error(), "boom")
}

func TestRetryerSucceedsMidway(t *testing.T) {
	r := &retryer{maxRetries: 5, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond, multiplier: 2.0}

	calls := 0
	err := r.retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerHonorsContextCancellation(t *testing.T) {
	r := newRetryer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.retry(ctx, func() error { return errors.New("never succeeds") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryerDelayIsCapped(t *testing.T) {
	r := &retryer{baseDelay: time.Second, maxDelay: 5 * time.Second, multiplier: 10.0}

	assert.LessOrEqual(t, r.delay(10), 5*time.Second)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("record does not exist")))
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("write: broken pipe")))
	assert.True(t, isConnectionError(fmt.Errorf("read frame: %w", errors.New("unexpected EOF"))))
	assert.True(t, isConnectionError(context.DeadlineExceeded))
}

func TestRedactDBURL(t *testing.T) {
	redacted := redactDBURL("ws://root:secret@localhost:8000/rpc")
	assert.NotContains(t, redacted, "secret")
	assert.Contains(t, redacted, "localhost:8000")
}
