package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 109.99, RoundPrice(109.989))
	assert.Equal(t, 100.0, RoundPrice(100.004))
	assert.Equal(t, 100.01, RoundPrice(100.006))
	assert.Equal(t, -100.01, RoundPrice(-100.006))
	assert.Equal(t, 0.0, RoundPrice(0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(5, 0, 10))
	assert.Equal(t, 0.0, Clamp(-3, 0, 10))
	assert.Equal(t, 10.0, Clamp(42, 0, 10))
	assert.Equal(t, 0.0, Clamp(0, 0, 10))
	assert.Equal(t, 10.0, Clamp(10, 0, 10))
}

func TestPtrHelpers(t *testing.T) {
	p := ToPtr(7)
	assert.Equal(t, 7, *p)

	assert.False(t, IsTrue(nil))
	assert.False(t, IsTrue(ToPtr(false)))
	assert.True(t, IsTrue(ToPtr(true)))
}

func TestTruncateToDay(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	in := time.Date(2026, 6, 15, 1, 30, 0, 0, loc)

	got := TruncateToDay(in)
	assert.Equal(t, time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestIsExpired(t *testing.T) {
	assert.True(t, IsExpired(UTCNow().Add(-time.Minute)))
	assert.False(t, IsExpired(UTCNow().Add(time.Minute)))
}
