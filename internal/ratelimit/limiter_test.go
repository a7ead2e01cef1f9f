package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToMaxWithinWindow(t *testing.T) {
	l := New(2, time.Minute)

	assert.True(t, l.Allow("global"))
	assert.True(t, l.Allow("global"))
	assert.False(t, l.Allow("global"), "third request within the window must be rejected")
}

func TestLimiter_RecoversAfterWindowElapses(t *testing.T) {
	l := New(1, 20*time.Millisecond)

	assert.True(t, l.Allow("global"))
	assert.False(t, l.Allow("global"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("global"), "a new window should reset the budget")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_NonPositiveConfigDisablesLimiting(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("global"))
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("global"))
	assert.False(t, l.Allow("global"))

	l.Reset("global")
	assert.True(t, l.Allow("global"))
}

func TestLimiter_Remaining(t *testing.T) {
	l := New(3, time.Minute)
	assert.Equal(t, 3, l.Remaining("global"))
	l.Allow("global")
	assert.Equal(t, 2, l.Remaining("global"))
}
