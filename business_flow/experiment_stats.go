package businessflow

import (
	"math"
)

// Winner determination outcomes. These are valid results, not errors.
const (
	OutcomeInsufficientData        = "insufficient_data"
	OutcomeNoSignificantDifference = "no_significant_difference"
	OutcomeWinner                  = "winner"
)

// criticalZ maps a one-sided confidence level to its normal critical value
var criticalZ = map[int]float64{
	90: 1.2816,
	95: 1.6449,
	99: 2.3263,
}

// twoProportionZ computes the pooled two-proportion z statistic for a
// treatment against control. Positive z means the treatment converts better.
func twoProportionZ(controlConv, controlExp, treatConv, treatExp int64) float64 {
	if controlExp == 0 || treatExp == 0 {
		return 0
	}

	p1 := float64(controlConv) / float64(controlExp)
	p2 := float64(treatConv) / float64(treatExp)
	pooled := float64(controlConv+treatConv) / float64(controlExp+treatExp)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(controlExp) + 1/float64(treatExp)))
	if se == 0 {
		return 0
	}

	return (p2 - p1) / se
}

// normalCDF is the standard normal cumulative distribution function
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// oneSidedPValue is the p-value for the hypothesis "treatment converts better"
func oneSidedPValue(z float64) float64 {
	return 1 - normalCDF(z)
}

// isSignificantImprovement reports whether the treatment beats control at the
// given confidence level (90, 95 or 99). Unknown levels fall back to 95.
func isSignificantImprovement(z float64, confidenceLevel int) bool {
	crit, ok := criticalZ[confidenceLevel]
	if !ok {
		crit = criticalZ[95]
	}
	return z > crit
}
