package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := RetryBackoff(context.Background(), 3, time.Millisecond, nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryBackoff_ReturnsLastError(t *testing.T) {
	calls := 0
	err := RetryBackoff(context.Background(), 2, time.Millisecond, nil, func() error {
		calls++
		return errors.New("still down")
	})

	assert.EqualError(t, err, "still down")
	assert.Equal(t, 2, calls)
}

func TestRetryBackoff_DoublesDelay(t *testing.T) {
	base := 20 * time.Millisecond
	var calls []time.Time
	_ = RetryBackoff(context.Background(), 3, base, nil, func() error {
		calls = append(calls, time.Now())
		return errors.New("boom")
	})

	if assert.Len(t, calls, 3) {
		assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), base)
		assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 2*base)
	}
}

func TestRetryBackoff_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("open circuit")
	calls := 0
	err := RetryBackoff(context.Background(), 5, time.Millisecond,
		func(err error) bool { return !errors.Is(err, permanent) },
		func() error {
			calls++
			return permanent
		})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryBackoff_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryBackoff(ctx, 3, time.Second, nil, func() error { return errors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTernary(t *testing.T) {
	assert.Equal(t, "a", Ternary(true, "a", "b"))
	assert.Equal(t, 2, Ternary(false, 1, 2))
}
