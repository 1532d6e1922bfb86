package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the breaker past its reset timeout.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("openai", WithMaxFailures(maxFailures), WithResetTimeout(time.Minute))
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb, _ := newTestBreaker(3)

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}

	// Then: circuit is open and requests are rejected
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses
	clock.Advance(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	// Then: a successful probe closes the circuit
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReOpens(t *testing.T) {
	cb, clock := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	clock.Advance(2 * time.Minute)

	err := cb.Execute(func() error { return errors.New("still down") })

	assert.EqualError(t, err, "still down")
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitExecute_ReturnsValue(t *testing.T) {
	cb, _ := newTestBreaker(2)

	got, err := CircuitExecute(cb, func() (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, "openai", cb.Name())
	assert.Equal(t, "closed", cb.State().String())
}
