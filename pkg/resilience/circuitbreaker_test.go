package resilience

import (
	"errors"
	"testing"
	"time"

	"alertnet/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, retryTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RetryTimeout:     retryTimeout,
	}, logger.New(logger.Config{Level: "error"}))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(t, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	// Short-circuited: fn never runs while open.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(t, time.Minute)
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return boom })
	require.NoError(t, cb.Execute(func() error { return nil }))
	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return boom })

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(t, 5*time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return boom })
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newTestBreaker(t, 5*time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return boom })
	}
	time.Sleep(10 * time.Millisecond)

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())
}
