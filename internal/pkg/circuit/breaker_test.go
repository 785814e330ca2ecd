package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("unit", 3, time.Minute)
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "two failures stay below the threshold")

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("unit", 3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures never open the breaker")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("unit", 1, 10*time.Millisecond)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "first call after cooldown probes")
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("unit", 1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerStateChangeObserver(t *testing.T) {
	b := NewBreaker("flaky-unit", 1, 10*time.Millisecond)
	var transitions []string
	b.OnStateChange(func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	b.RecordSuccess()

	assert.Equal(t, []string{
		"flaky-unit:CLOSED->OPEN",
		"flaky-unit:OPEN->HALF-OPEN",
		"flaky-unit:HALF-OPEN->CLOSED",
	}, transitions)
}

func TestBreakerDefaultsOnBadArgs(t *testing.T) {
	b := NewBreaker("unit", 0, 0)
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}
