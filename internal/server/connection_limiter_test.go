package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third connection exceeds the cap")
	assert.Equal(t, int64(2), l.Current())

	l.Release()
	assert.True(t, l.Acquire())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("1.2.3.4"))
	assert.True(t, l.Acquire("1.2.3.4"))
	assert.False(t, l.Acquire("1.2.3.4"))
	assert.True(t, l.Acquire("5.6.7.8"), "other IPs are unaffected")

	l.Release("1.2.3.4")
	assert.True(t, l.Acquire("1.2.3.4"))
	assert.Equal(t, 2, l.Count("1.2.3.4"))
}

func TestIPConnectionLimiter_ReleaseUnknownIP(t *testing.T) {
	l := NewIPConnectionLimiter(1)
	l.Release("9.9.9.9")
	assert.Equal(t, 0, l.Count("9.9.9.9"))
}

func TestConnectionRateLimiter(t *testing.T) {
	// 1/sec with burst 2: two immediate connections pass, the third is
	// rate limited.
	l := NewConnectionRateLimiter(1, 2)

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "buckets are per IP")
}

func TestConnectionLimits_Acquire(t *testing.T) {
	l := NewConnectionLimits(10, 10, 1000, 1000)

	ok, reason := l.Acquire("1.2.3.4")
	require.True(t, ok)
	assert.Empty(t, reason)
	l.Release("1.2.3.4")
}

func TestConnectionLimits_GlobalReason(t *testing.T) {
	l := NewConnectionLimits(1, 10, 1000, 1000)

	ok, _ := l.Acquire("1.2.3.4")
	require.True(t, ok)

	ok, reason := l.Acquire("5.6.7.8")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)
}

func TestConnectionLimits_PerIPReasonRollsBackGlobal(t *testing.T) {
	l := NewConnectionLimits(10, 1, 1000, 1000)

	ok, _ := l.Acquire("1.2.3.4")
	require.True(t, ok)

	ok, reason := l.Acquire("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// The global slot taken before the per-IP check must be returned.
	assert.Equal(t, int64(1), l.global.Current())
}

func TestConnectionLimits_RateReason(t *testing.T) {
	l := NewConnectionLimits(10, 10, 1, 1)

	ok, _ := l.Acquire("1.2.3.4")
	require.True(t, ok)

	ok, reason := l.Acquire("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}
