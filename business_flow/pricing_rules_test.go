package businessflow

import (
	"testing"

	"github.com/storekeep/pricing-core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnit(basePrice, currentPrice float64) *models.Unit {
	return &models.Unit{
		ID:           1,
		SiteID:       1,
		UnitNumber:   "U-0001",
		AreaSqm:      8,
		Category:     models.UnitCategoryMedium,
		BasePrice:    basePrice,
		CurrentPrice: currentPrice,
		Status:       models.UnitStatusAvailable,
	}
}

func TestSeasonalFactor(t *testing.T) {
	assert.Equal(t, 0.80, SeasonalFactor(1))
	assert.Equal(t, 1.30, SeasonalFactor(6))
	assert.Equal(t, 1.20, SeasonalFactor(7))
	assert.Equal(t, 0.95, SeasonalFactor(12))

	// Out-of-range months are neutral
	assert.Equal(t, 1.0, SeasonalFactor(0))
	assert.Equal(t, 1.0, SeasonalFactor(13))
}

func TestSeasonalityRule(t *testing.T) {
	unit := testUnit(100, 100)

	price, err := ComputeCandidate(unit, models.TriggerSeasonality, models.TriggerDetails{
		Seasonality: &models.SeasonalityDetails{Month: 7, Factor: 1.20},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 120.0, price)

	// Seasonality prices off the base price, not the drifted current price
	drifted := testUnit(100, 103)
	price, err = ComputeCandidate(drifted, models.TriggerSeasonality, models.TriggerDetails{
		Seasonality: &models.SeasonalityDetails{Month: 1},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 80.0, price)

	// The cap is measured against the current price, so a far-drifted price
	// lands on the clamp boundary instead of the seasonal target
	farDrifted := testUnit(100, 110)
	price, err = ComputeCandidate(farDrifted, models.TriggerSeasonality, models.TriggerDetails{
		Seasonality: &models.SeasonalityDetails{Month: 1},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 82.5, price)

	_, err = ComputeCandidate(unit, models.TriggerSeasonality, models.TriggerDetails{
		Seasonality: &models.SeasonalityDetails{Month: 13},
	}, 25)
	assert.ErrorIs(t, err, ErrTriggerDetailsMissing)
}

func TestOccupancyRule(t *testing.T) {
	unit := testUnit(100, 100)

	tests := []struct {
		name     string
		rate     float64
		expected float64
	}{
		{"empty site drops the full 15 percent", 0.0, 85.0},
		{"below band drops proportionally", 0.35, 92.5},
		{"inside band holds", 0.80, 100.0},
		{"band edges hold", 0.70, 100.0},
		{"above band raises proportionally", 0.95, 107.5},
		{"full site raises the full 15 percent", 1.0, 115.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ComputeCandidate(unit, models.TriggerOccupancy, models.TriggerDetails{
				Occupancy: &models.OccupancyDetails{OccupancyRate: tt.rate},
			}, 25)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, price, 0.01)
		})
	}

	_, err := ComputeCandidate(unit, models.TriggerOccupancy, models.TriggerDetails{}, 25)
	assert.ErrorIs(t, err, ErrTriggerDetailsMissing)
}

func TestDemandRule(t *testing.T) {
	unit := testUnit(100, 100)

	tests := []struct {
		name     string
		score    float64
		expected float64
	}{
		{"max demand raises the full 10 percent", 100, 110.0},
		{"high demand raises linearly", 85, 105.0},
		{"neutral band holds", 50, 100.0},
		{"band edges hold", 70, 100.0},
		{"low demand lowers linearly", 15, 95.0},
		{"zero demand lowers the full 10 percent", 0, 90.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ComputeCandidate(unit, models.TriggerDemand, models.TriggerDetails{
				Demand: &models.DemandDetails{DemandScore: tt.score},
			}, 25)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, price, 0.01)
		})
	}
}

func TestCompetitorRule(t *testing.T) {
	unit := testUnit(100, 100)

	// Moves halfway toward the competitor average
	price, err := ComputeCandidate(unit, models.TriggerCompetitor, models.TriggerDetails{
		Competitor: &models.CompetitorDetails{CompetitorAverage: 120, SampleSize: 5},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)

	price, err = ComputeCandidate(unit, models.TriggerCompetitor, models.TriggerDetails{
		Competitor: &models.CompetitorDetails{CompetitorAverage: 80, SampleSize: 3},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 90.0, price)

	_, err = ComputeCandidate(unit, models.TriggerCompetitor, models.TriggerDetails{
		Competitor: &models.CompetitorDetails{CompetitorAverage: 120, SampleSize: 0},
	}, 25)
	assert.ErrorIs(t, err, ErrNoCompetitorData)
}

func TestManualRule(t *testing.T) {
	unit := testUnit(100, 100)

	price, err := ComputeCandidate(unit, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 117.5},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 117.5, price)

	_, err = ComputeCandidate(unit, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 0},
	}, 25)
	assert.ErrorIs(t, err, ErrTargetPriceRequired)
}

func TestABTestRule(t *testing.T) {
	unit := testUnit(100, 100)

	price, err := ComputeCandidate(unit, models.TriggerABTest, models.TriggerDetails{
		ABTest: &models.ABTestDetails{Modifier: 10, ModifierType: models.ModifierTypePercentage},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)

	price, err = ComputeCandidate(unit, models.TriggerABTest, models.TriggerDetails{
		ABTest: &models.ABTestDetails{Modifier: -12.5, ModifierType: models.ModifierTypeFixed},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 87.5, price)

	_, err = ComputeCandidate(unit, models.TriggerABTest, models.TriggerDetails{
		ABTest: &models.ABTestDetails{Modifier: 10, ModifierType: "relative"},
	}, 25)
	assert.ErrorIs(t, err, ErrVariantModifierTypeInvalid)
}

func TestGuardrailsClampChanges(t *testing.T) {
	unit := testUnit(100, 100)

	// A manual target far above the cap is clamped to +25%
	price, err := ComputeCandidate(unit, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 200},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 125.0, price)

	// And far below to -25%
	price, err = ComputeCandidate(unit, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 40},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 75.0, price)

	// A tighter cap applies when configured
	price, err = ComputeCandidate(unit, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 200},
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)
}

func TestGuardrailsRounding(t *testing.T) {
	unit := testUnit(99.99, 99.99)

	price, err := ComputeCandidate(unit, models.TriggerABTest, models.TriggerDetails{
		ABTest: &models.ABTestDetails{Modifier: 10, ModifierType: models.ModifierTypePercentage},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 109.99, price)
}

func TestGuardrailsRejectNonPositivePrices(t *testing.T) {
	broken := testUnit(100, 0)

	_, err := ComputeCandidate(broken, models.TriggerManual, models.TriggerDetails{
		Manual: &models.ManualDetails{TargetPrice: 50},
	}, 25)
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestComputeCandidateRejectsUnknownTrigger(t *testing.T) {
	unit := testUnit(100, 100)

	_, err := ComputeCandidate(unit, models.AdjustmentTrigger("weather"), models.TriggerDetails{}, 25)
	assert.ErrorIs(t, err, ErrInvalidTrigger)
}
