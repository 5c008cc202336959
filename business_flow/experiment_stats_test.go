package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwoProportionZ(t *testing.T) {
	// Identical groups score zero
	assert.Equal(t, 0.0, twoProportionZ(10, 100, 10, 100))

	// Zero exposures on either side are never significant
	assert.Equal(t, 0.0, twoProportionZ(0, 0, 10, 100))
	assert.Equal(t, 0.0, twoProportionZ(10, 100, 0, 0))

	// Zero conversions everywhere give a degenerate pooled rate
	assert.Equal(t, 0.0, twoProportionZ(0, 100, 0, 100))

	// A better treatment scores positive, a worse one negative
	assert.Greater(t, twoProportionZ(50, 1000, 80, 1000), 0.0)
	assert.Less(t, twoProportionZ(80, 1000, 50, 1000), 0.0)

	// The statistic is antisymmetric under swapping the groups
	z := twoProportionZ(50, 1000, 80, 1000)
	assert.InDelta(t, -z, twoProportionZ(80, 1000, 50, 1000), 1e-12)
}

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, normalCDF(0), 1e-12)
	assert.InDelta(t, 0.975, normalCDF(1.96), 0.001)
	assert.InDelta(t, 0.025, normalCDF(-1.96), 0.001)
}

func TestOneSidedPValue(t *testing.T) {
	assert.InDelta(t, 0.5, oneSidedPValue(0), 1e-12)
	assert.InDelta(t, 0.05, oneSidedPValue(1.6449), 0.001)

	// Larger z means stronger evidence, smaller p
	assert.Less(t, oneSidedPValue(2.5), oneSidedPValue(1.5))
}

func TestIsSignificantImprovement(t *testing.T) {
	// Small samples with a one-conversion gap are nowhere near significant
	z := twoProportionZ(9, 60, 10, 60)
	assert.False(t, isSignificantImprovement(z, 95))
	assert.False(t, isSignificantImprovement(z, 90))

	// A clear lift over a large sample is
	z = twoProportionZ(50, 1000, 80, 1000)
	assert.True(t, isSignificantImprovement(z, 95))

	// Stricter levels need a larger statistic
	assert.True(t, isSignificantImprovement(1.7, 95))
	assert.False(t, isSignificantImprovement(1.7, 99))
	assert.True(t, isSignificantImprovement(1.3, 90))

	// A worse treatment never wins, regardless of magnitude
	assert.False(t, isSignificantImprovement(-3.0, 95))

	// Unknown levels fall back to 95
	assert.False(t, isSignificantImprovement(1.5, 80))
	assert.True(t, isSignificantImprovement(1.7, 80))
}
