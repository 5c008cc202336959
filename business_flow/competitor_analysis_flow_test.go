package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarketPositionBuckets(t *testing.T) {
	tests := []struct {
		differencePct float64
		expected      string
	}{
		{20.0, MarketPositionPremium},
		{15.01, MarketPositionPremium},
		{15.0, MarketPositionAbove},
		{5.01, MarketPositionAbove},
		{5.0, MarketPositionAt},
		{0.0, MarketPositionAt},
		{-4.99, MarketPositionAt},
		{-5.0, MarketPositionBelow},
		{-14.99, MarketPositionBelow},
		{-15.0, MarketPositionBudget},
		{-30.0, MarketPositionBudget},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, marketPosition(tt.differencePct), "difference %v", tt.differencePct)
	}
}

func TestIndexRecommendation(t *testing.T) {
	recommendation, change := indexRecommendation(80)
	assert.Equal(t, RecommendationIncrease, recommendation)
	assert.Equal(t, 10.0, change)

	// our_average=30 vs competitor_average=25 gives index 120
	recommendation, change = indexRecommendation(120)
	assert.Equal(t, RecommendationDecrease, recommendation)
	assert.Equal(t, -10.0, change)

	for _, index := range []float64{90.0, 100.0, 115.0} {
		recommendation, change = indexRecommendation(index)
		assert.Equal(t, RecommendationHold, recommendation, "index %v", index)
		assert.Equal(t, 0.0, change)
	}
}
