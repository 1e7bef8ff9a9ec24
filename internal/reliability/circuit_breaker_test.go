package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	fail := func() error { return errors.New("bus unavailable") }
	ok := func() error { return nil }

	t.Run("starts closed and executes", func(t *testing.T) {
		cb := NewCircuitBreaker()
		executed := false

		err := cb.Execute(context.Background(), func() error {
			executed = true
			return nil
		})

		assert.NoError(t, err)
		assert.True(t, executed)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("opens after failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(3), WithName("eventbridge"))

		for i := 0; i < 3; i++ {
			assert.Error(t, cb.Execute(context.Background(), fail))
		}
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Execute(context.Background(), func() error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.ErrorIs(t, err, ErrCircuitOpen)

		var cbErr *CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
		assert.Equal(t, "eventbridge", cbErr.Name)
		assert.Contains(t, err.Error(), "open")
	})

	t.Run("success in closed state resets failures", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(2))

		assert.Error(t, cb.Execute(context.Background(), fail))
		assert.NoError(t, cb.Execute(context.Background(), ok))
		assert.Error(t, cb.Execute(context.Background(), fail))

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open closes on success after timeout", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithTimeout(time.Minute))
		cb.now = func() time.Time { return now }

		assert.Error(t, cb.Execute(context.Background(), fail))
		assert.Equal(t, StateOpen, cb.State())

		now = now.Add(2 * time.Minute)
		assert.NoError(t, cb.Execute(context.Background(), ok))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open reopens on failure", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithTimeout(time.Minute))
		cb.now = func() time.Time { return now }

		assert.Error(t, cb.Execute(context.Background(), fail))
		now = now.Add(2 * time.Minute)
		assert.Error(t, cb.Execute(context.Background(), fail))

		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("cancelled context does not call fn", func(t *testing.T) {
		cb := NewCircuitBreaker()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
