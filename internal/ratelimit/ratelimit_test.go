package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBeforeCallNoWaitFirstCall(t *testing.T) {
	l := NewLimiter(100 * time.Millisecond)
	assert.Equal(t, time.Duration(0), l.BeforeCall())
}

func TestBeforeCallEnforcesMinDelay(t *testing.T) {
	l := NewLimiter(50 * time.Millisecond)
	l.BeforeCall()
	wait := l.BeforeCall()
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 50*time.Millisecond)
}

func TestCanMakeRequestRespectsQuota(t *testing.T) {
	l := NewLimiter(0)
	assert.True(t, l.CanMakeRequest())

	l.UpdateFromHeaders(0, time.Now().Add(time.Minute))
	assert.False(t, l.CanMakeRequest())

	l.UpdateFromHeaders(5, time.Time{})
	assert.True(t, l.CanMakeRequest())
}

func TestResetClearsState(t *testing.T) {
	l := NewLimiter(time.Hour)
	l.BeforeCall()
	l.UpdateFromHeaders(0, time.Now().Add(time.Hour))
	l.Reset()
	assert.Equal(t, time.Duration(0), l.BeforeCall())
	assert.True(t, l.CanMakeRequest())
}
