package circuit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)
	fail := func() error { return fmt.Errorf("boom") }

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Do(fail))
	}
	assert.Equal(t, StateOpen, cb.State())

	var called bool
	err := cb.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	assert.Error(t, cb.Do(func() error { return fmt.Errorf("boom") }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	assert.Error(t, cb.Do(func() error { return fmt.Errorf("boom") }))

	time.Sleep(20 * time.Millisecond)
	assert.Error(t, cb.Do(func() error { return fmt.Errorf("still broken") }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	assert.Error(t, cb.Do(func() error { return fmt.Errorf("boom") }))
	assert.NoError(t, cb.Do(func() error { return nil }))
	assert.Error(t, cb.Do(func() error { return fmt.Errorf("boom") }))
	assert.Equal(t, StateClosed, cb.State())
}
