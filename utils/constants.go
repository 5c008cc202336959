package utils

import (
	"time"
)

// ContextKey is the type for request metadata keys stored in context
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TimeoutKey   ContextKey = "timeout"
)

// Pricing guardrails and windows
const (
	// DefaultMaxAdjustmentPercent caps the magnitude of any single price change (25%)
	DefaultMaxAdjustmentPercent = 25.0

	// RevertWindow is how long after creation an adjustment may still be reverted
	RevertWindow = 7 * 24 * time.Hour

	// CompetitorPriceMaxAge is the freshness window for competitor rows used in aggregation
	CompetitorPriceMaxAge = 30 * 24 * time.Hour

	// OccupancyTargetLow and OccupancyTargetHigh bound the target occupancy band
	OccupancyTargetLow  = 0.70
	OccupancyTargetHigh = 0.90
)

// Experiment bounds enforced at creation time
const (
	MinVariantsPerExperiment = 2
	MaxVariantsPerExperiment = 4

	// VariantWeightSumTolerance is the allowed deviation of the weight sum from 100
	VariantWeightSumTolerance = 0.01

	// VariantModifierBound caps |price_modifier| for any variant
	VariantModifierBound = 50.0
)

// Market position thresholds (percent difference against competitor average)
const (
	MarketPremiumThreshold  = 15.0
	MarketAboveThreshold    = 5.0
	MarketBelowThreshold    = -5.0
	MarketBudgetThreshold   = -15.0
	PriceIndexIncreaseBelow = 90.0
	PriceIndexDecreaseAbove = 115.0
)
