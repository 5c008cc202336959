package businessflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExperiment(traffic float64, variants ...models.Variant) *models.PricingExperiment {
	if len(variants) == 0 {
		variants = models.VariantList{
			{Name: "control", Weight: 50, PriceModifier: 0, ModifierType: models.ModifierTypePercentage},
			{Name: "plus_ten", Weight: 50, PriceModifier: 10, ModifierType: models.ModifierTypePercentage},
		}
	}
	return &models.PricingExperiment{
		UUID:              uuid.MustParse("4b85f3d2-9c41-4a7e-8d2f-1f6f1f1a2b3c"),
		Name:              "Summer pricing",
		Variants:          variants,
		TrafficPercentage: traffic,
		DurationDays:      14,
		MinSampleSize:     50,
		ConfidenceLevel:   95,
		Status:            models.ExperimentStatusRunning,
	}
}

func TestDecideAssignmentIsDeterministic(t *testing.T) {
	experiment := testExperiment(50)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("visitor-%d", i)
		included, variant := decideAssignment(experiment, key)
		for j := 0; j < 5; j++ {
			again, variantAgain := decideAssignment(experiment, key)
			require.Equal(t, included, again, "inclusion flapped for %s", key)
			require.Equal(t, variant, variantAgain, "variant flapped for %s", key)
		}
	}
}

func TestDecideAssignmentDiffersAcrossExperiments(t *testing.T) {
	a := testExperiment(100)
	b := testExperiment(100)
	b.UUID = uuid.MustParse("9e0f64a1-2d3b-4c5d-8e7f-0a1b2c3d4e5f")

	// The same visitor should not land on the same variant in every
	// experiment, otherwise assignments would be correlated.
	differs := false
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("visitor-%d", i)
		_, va := decideAssignment(a, key)
		_, vb := decideAssignment(b, key)
		if va != vb {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestDecideAssignmentRespectsTrafficPercentage(t *testing.T) {
	full := testExperiment(100)
	for i := 0; i < 200; i++ {
		included, variant := decideAssignment(full, fmt.Sprintf("visitor-%d", i))
		require.True(t, included)
		require.NotEmpty(t, variant)
	}

	half := testExperiment(50)
	includedCount := 0
	total := 2000
	for i := 0; i < total; i++ {
		included, variant := decideAssignment(half, fmt.Sprintf("visitor-%d", i))
		if included {
			includedCount++
		} else {
			require.Empty(t, variant)
		}
	}

	// 50% traffic over 2000 keys should land well inside 40-60%
	assert.Greater(t, includedCount, total*2/5)
	assert.Less(t, includedCount, total*3/5)
}

func TestDecideAssignmentHonorsWeights(t *testing.T) {
	skewed := testExperiment(100, models.Variant{
		Name: "control", Weight: 100, PriceModifier: 0, ModifierType: models.ModifierTypePercentage,
	}, models.Variant{
		Name: "never", Weight: 0, PriceModifier: 10, ModifierType: models.ModifierTypePercentage,
	})

	for i := 0; i < 500; i++ {
		included, variant := decideAssignment(skewed, fmt.Sprintf("visitor-%d", i))
		require.True(t, included)
		require.Equal(t, "control", variant)
	}

	even := testExperiment(100)
	counts := map[string]int{}
	total := 2000
	for i := 0; i < total; i++ {
		_, variant := decideAssignment(even, fmt.Sprintf("visitor-%d", i))
		counts[variant]++
	}

	// 50/50 weights over 2000 keys should land well inside 40-60% each
	for name, count := range counts {
		assert.Greater(t, count, total*2/5, "variant %s underrepresented", name)
		assert.Less(t, count, total*3/5, "variant %s overrepresented", name)
	}
}

func validCreateRequest() *dto.CreateExperimentRequest {
	return &dto.CreateExperimentRequest{
		Name: "Summer pricing",
		Variants: []dto.VariantDTO{
			{Name: "control", Weight: 50, PriceModifier: 0, ModifierType: models.ModifierTypePercentage},
			{Name: "plus_ten", Weight: 50, PriceModifier: 10, ModifierType: models.ModifierTypePercentage},
		},
		TrafficPercentage: 100,
		DurationDays:      14,
		MinSampleSize:     50,
		ConfidenceLevel:   95,
	}
}

func TestValidateExperimentConfig(t *testing.T) {
	assert.NoError(t, validateExperimentConfig(validCreateRequest()))

	tests := []struct {
		name     string
		mutate   func(*dto.CreateExperimentRequest)
		expected error
	}{
		{"one variant", func(r *dto.CreateExperimentRequest) {
			r.Variants = r.Variants[:1]
		}, ErrVariantCountOutOfRange},
		{"five variants", func(r *dto.CreateExperimentRequest) {
			for i := 0; i < 3; i++ {
				r.Variants = append(r.Variants, dto.VariantDTO{
					Name: fmt.Sprintf("extra_%d", i), Weight: 0, ModifierType: models.ModifierTypePercentage,
				})
			}
		}, ErrVariantCountOutOfRange},
		{"zero traffic", func(r *dto.CreateExperimentRequest) {
			r.TrafficPercentage = 0
		}, ErrTrafficPercentageInvalid},
		{"traffic above 100", func(r *dto.CreateExperimentRequest) {
			r.TrafficPercentage = 101
		}, ErrTrafficPercentageInvalid},
		{"zero duration", func(r *dto.CreateExperimentRequest) {
			r.DurationDays = 0
		}, ErrDurationInvalid},
		{"zero sample size", func(r *dto.CreateExperimentRequest) {
			r.MinSampleSize = 0
		}, ErrMinSampleSizeInvalid},
		{"odd confidence level", func(r *dto.CreateExperimentRequest) {
			r.ConfidenceLevel = 97
		}, ErrConfidenceLevelInvalid},
		{"empty variant name", func(r *dto.CreateExperimentRequest) {
			r.Variants[1].Name = ""
		}, ErrVariantNameRequired},
		{"duplicate variant name", func(r *dto.CreateExperimentRequest) {
			r.Variants[1].Name = "control"
		}, ErrVariantNameRequired},
		{"negative weight", func(r *dto.CreateExperimentRequest) {
			r.Variants[0].Weight = -10
			r.Variants[1].Weight = 110
		}, ErrVariantWeightOutOfRange},
		{"modifier beyond bound", func(r *dto.CreateExperimentRequest) {
			r.Variants[1].PriceModifier = 51
		}, ErrVariantModifierOutOfRange},
		{"unknown modifier type", func(r *dto.CreateExperimentRequest) {
			r.Variants[1].ModifierType = "relative"
		}, ErrVariantModifierTypeInvalid},
		{"weights sum below 100", func(r *dto.CreateExperimentRequest) {
			r.Variants[1].Weight = 40
		}, ErrVariantWeightSumInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)
			assert.ErrorIs(t, validateExperimentConfig(req), tt.expected)
		})
	}
}

func TestValidateExperimentConfigWeightTolerance(t *testing.T) {
	req := validCreateRequest()
	req.Variants[0].Weight = 49.999
	req.Variants[1].Weight = 50.0
	// 99.999 is inside the rounding tolerance
	assert.NoError(t, validateExperimentConfig(req))

	req.Variants[1].Weight = 49.9
	assert.ErrorIs(t, validateExperimentConfig(req), ErrVariantWeightSumInvalid)
}

func variantResult(name string, exposures, conversions int64) models.VariantResult {
	rate := 0.0
	if exposures > 0 {
		rate = float64(conversions) / float64(exposures)
	}
	return models.VariantResult{
		Name:           name,
		Exposures:      exposures,
		Conversions:    conversions,
		ConversionRate: rate,
	}
}

func TestDetermineWinner(t *testing.T) {
	flow := &ExperimentFlowImpl{}

	t.Run("InsufficientData", func(t *testing.T) {
		experiment := testExperiment(100)
		experiment.MinSampleSize = 100

		results := &models.ExperimentResults{Variants: []models.VariantResult{
			variantResult("control", 3, 1),
			variantResult("plus_ten", 120, 30),
		}}
		flow.determineWinner(experiment, results)
		assert.Equal(t, OutcomeInsufficientData, results.Outcome)
		assert.Nil(t, results.WinningVariant)
	})

	t.Run("LowerRateNeverWins", func(t *testing.T) {
		experiment := testExperiment(100)

		// 9/60 against 10/60: lower rate, no winner
		results := &models.ExperimentResults{Variants: []models.VariantResult{
			variantResult("control", 60, 10),
			variantResult("plus_ten", 60, 9),
		}}
		flow.determineWinner(experiment, results)
		assert.Equal(t, OutcomeNoSignificantDifference, results.Outcome)
		assert.Nil(t, results.WinningVariant)
	})

	t.Run("SmallLiftIsNotSignificant", func(t *testing.T) {
		experiment := testExperiment(100)

		results := &models.ExperimentResults{Variants: []models.VariantResult{
			variantResult("control", 60, 9),
			variantResult("plus_ten", 60, 10),
		}}
		flow.determineWinner(experiment, results)
		assert.Equal(t, OutcomeNoSignificantDifference, results.Outcome)
	})

	t.Run("ClearWinner", func(t *testing.T) {
		experiment := testExperiment(100)

		results := &models.ExperimentResults{Variants: []models.VariantResult{
			variantResult("control", 1000, 50),
			variantResult("plus_ten", 1000, 80),
		}}
		flow.determineWinner(experiment, results)
		assert.Equal(t, OutcomeWinner, results.Outcome)
		require.NotNil(t, results.WinningVariant)
		assert.Equal(t, "plus_ten", *results.WinningVariant)

		p, ok := results.PValues["plus_ten"]
		require.True(t, ok)
		assert.Less(t, p, 0.05)
	})
}

func TestExperimentProgress(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	experiment := testExperiment(100)
	assert.Equal(t, 0.0, experimentProgress(experiment, now))

	startedAt := now.Add(-7 * 24 * time.Hour)
	experiment.StartedAt = &startedAt
	assert.InDelta(t, 50.0, experimentProgress(experiment, now), 0.01)

	// Progress caps at 100 once the window has passed
	longAgo := now.Add(-60 * 24 * time.Hour)
	experiment.StartedAt = &longAgo
	assert.Equal(t, 100.0, experimentProgress(experiment, now))
}

func TestValidateWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	from, to, err := validateWindow(nil, nil, defaultReportWindow, now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-defaultReportWindow), from)

	explicit := now.Add(-48 * time.Hour)
	from, to, err = validateWindow(&explicit, nil, defaultReportWindow, now)
	require.NoError(t, err)
	assert.Equal(t, explicit, from)
	assert.Equal(t, now, to)

	after := now.Add(time.Hour)
	_, _, err = validateWindow(&after, &now, defaultReportWindow, now)
	assert.ErrorIs(t, err, ErrStartDateAfterEndDate)
}

func TestParseReportWindow(t *testing.T) {
	from, to, err := parseReportWindow(&dto.HistorySummaryRequest{
		From: utils.ToPtr("2026-05-01T00:00:00Z"),
		To:   utils.ToPtr("2026-06-01T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), to.UTC())

	_, _, err = parseReportWindow(&dto.HistorySummaryRequest{
		From: utils.ToPtr("01-05-2026"),
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestWinnerRolloutUsesConfiguredCap(t *testing.T) {
	tight := &ExperimentFlowImpl{cfg: config.PricingConfig{MaxAdjustmentPercent: 10}}
	assert.Equal(t, 10.0, tight.maxAdjustmentPercent())

	unset := &ExperimentFlowImpl{}
	assert.Equal(t, utils.DefaultMaxAdjustmentPercent, unset.maxAdjustmentPercent())

	// A +20% winning variant lands on the tighter cap, not the default
	unit := testUnit(100, 100)
	details := models.TriggerDetails{ABTest: &models.ABTestDetails{
		VariantName:  "plus_twenty",
		Modifier:     20,
		ModifierType: models.ModifierTypePercentage,
	}}
	price, err := ComputeCandidate(unit, models.TriggerABTest, details, tight.maxAdjustmentPercent())
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)
}
