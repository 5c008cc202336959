package businessflow

import (
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/utils"
)

// seasonalFactors is the fixed calendar-month demand multiplier table.
// Index 0 = January. Peak is mid-year, trough is January.
var seasonalFactors = [12]float64{
	0.80, // January
	0.85, // February
	0.90, // March
	1.00, // April
	1.10, // May
	1.30, // June
	1.20, // July
	1.15, // August
	1.05, // September
	0.95, // October
	0.90, // November
	0.95, // December
}

// SeasonalFactor returns the demand multiplier for a calendar month (1-12)
func SeasonalFactor(month int) float64 {
	if month < 1 || month > 12 {
		return 1.0
	}
	return seasonalFactors[month-1]
}

// PricingRule computes a raw candidate price for a unit from trigger details.
// Rules are pure; guardrails are applied afterwards by the caller.
type PricingRule func(unit *models.Unit, details models.TriggerDetails) (float64, error)

// pricingRules maps each trigger kind to its computation
var pricingRules = map[models.AdjustmentTrigger]PricingRule{
	models.TriggerOccupancy:   occupancyRule,
	models.TriggerDemand:      demandRule,
	models.TriggerCompetitor:  competitorRule,
	models.TriggerSeasonality: seasonalityRule,
	models.TriggerManual:      manualRule,
	models.TriggerABTest:      abTestRule,
}

// occupancyRule adjusts price against a target occupancy band. Below the band
// the price drops proportionally to the shortfall, above it rises
// proportionally to the excess, inside the band it holds.
func occupancyRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.Occupancy
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}

	low, high := d.TargetLow, d.TargetHigh
	if low <= 0 || high <= low {
		low, high = utils.OccupancyTargetLow, utils.OccupancyTargetHigh
	}

	rate := utils.Clamp(d.OccupancyRate, 0, 1)
	switch {
	case rate < low:
		// Up to -15% when completely empty
		shortfall := (low - rate) / low
		return unit.CurrentPrice * (1 - 0.15*shortfall), nil
	case rate > high:
		// Up to +15% when completely full
		excess := (rate - high) / (1 - high)
		return unit.CurrentPrice * (1 + 0.15*excess), nil
	default:
		return unit.CurrentPrice, nil
	}
}

// demandRule maps a 0-100 demand score to a price move. Scores above 70 raise
// the price, below 30 lower it, linear up to ±10% at the extremes.
func demandRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.Demand
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}

	score := utils.Clamp(d.DemandScore, 0, 100)
	switch {
	case score > 70:
		return unit.CurrentPrice * (1 + 0.10*(score-70)/30), nil
	case score < 30:
		return unit.CurrentPrice * (1 - 0.10*(30-score)/30), nil
	default:
		return unit.CurrentPrice, nil
	}
}

// competitorRule nudges the price halfway toward the category competitor
// average. The guardrail clamp bounds the move afterwards.
func competitorRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.Competitor
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}
	if d.CompetitorAverage <= 0 || d.SampleSize == 0 {
		return 0, ErrNoCompetitorData
	}

	return unit.CurrentPrice + (d.CompetitorAverage-unit.CurrentPrice)/2, nil
}

// seasonalityRule prices off the base price and the month's seasonal factor
func seasonalityRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.Seasonality
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}
	if d.Month < 1 || d.Month > 12 {
		return 0, ErrTriggerDetailsMissing
	}

	return unit.BasePrice * SeasonalFactor(d.Month), nil
}

// manualRule uses the explicit target price from the request
func manualRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.Manual
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}
	if d.TargetPrice <= 0 {
		return 0, ErrTargetPriceRequired
	}

	return d.TargetPrice, nil
}

// abTestRule applies a winning variant's modifier to the current price
func abTestRule(unit *models.Unit, details models.TriggerDetails) (float64, error) {
	d := details.ABTest
	if d == nil {
		return 0, ErrTriggerDetailsMissing
	}

	switch d.ModifierType {
	case models.ModifierTypePercentage:
		return unit.CurrentPrice * (1 + d.Modifier/100), nil
	case models.ModifierTypeFixed:
		return unit.CurrentPrice + d.Modifier, nil
	default:
		return 0, ErrVariantModifierTypeInvalid
	}
}

// applyGuardrails clamps the percentage change against the reference price,
// rejects non-positive results and rounds to 2 decimals.
func applyGuardrails(referencePrice, candidate, maxAdjustmentPercent float64) (float64, error) {
	if referencePrice <= 0 {
		return 0, ErrNonPositivePrice
	}

	changePct := (candidate - referencePrice) / referencePrice * 100
	changePct = utils.Clamp(changePct, -maxAdjustmentPercent, maxAdjustmentPercent)

	price := utils.RoundPrice(referencePrice * (1 + changePct/100))
	if price <= 0 {
		return 0, ErrNonPositivePrice
	}

	return price, nil
}

// ComputeCandidate runs the trigger's rule and guardrails for a unit
func ComputeCandidate(unit *models.Unit, trigger models.AdjustmentTrigger, details models.TriggerDetails, maxAdjustmentPercent float64) (float64, error) {
	rule, ok := pricingRules[trigger]
	if !ok {
		return 0, ErrInvalidTrigger
	}

	raw, err := rule(unit, details)
	if err != nil {
		return 0, err
	}

	return applyGuardrails(unit.CurrentPrice, raw, maxAdjustmentPercent)
}
