package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, Closed, b.Snapshot().Status)

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, Open, b.Snapshot().Status)

	// Further calls short-circuit without reaching the underlying operation.
	assert.False(t, b.Allow())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, Open, b.Snapshot().Status)
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "breaker should admit a probe once cb_timeout elapses")
	assert.Equal(t, HalfOpen, b.Snapshot().Status)

	// Only one probe may be in flight.
	assert.False(t, b.Allow())
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, Closed, b.Snapshot().Status)
	assert.Equal(t, 0, b.Snapshot().FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, Open, b.Snapshot().Status)
}

func TestRegistry_LazyCreatesPerPathBreakers(t *testing.T) {
	r := NewRegistry(DefaultPathConfigs())

	assert.False(t, r.IsOpen(PathBlockchainTransaction))
	cfg := r.Config(PathBlockchainTransaction)
	assert.Equal(t, 5, cfg.CBThreshold)
	assert.True(t, cfg.IsCritical)

	for i := 0; i < cfg.CBThreshold; i++ {
		r.get(PathBlockchainTransaction).Allow()
		r.get(PathBlockchainTransaction).RecordFailure()
	}
	assert.True(t, r.IsOpen(PathBlockchainTransaction))

	r.Reset(PathBlockchainTransaction)
	assert.False(t, r.IsOpen(PathBlockchainTransaction))
}

func TestRegistry_NonCriticalPathsStartClosedAndStayUnconfiguredThreshold(t *testing.T) {
	r := NewRegistry(nil)
	cfg := r.Config(PathGeneralAPI)
	assert.False(t, cfg.IsCritical)
	assert.Zero(t, cfg.CBThreshold)
	assert.False(t, r.IsOpen(PathGeneralAPI))
}
