package dto

// SubmitCompetitorPriceRequest records one observed competitor rate
type SubmitCompetitorPriceRequest struct {
	CompetitorName string   `json:"competitor_name" validate:"required,max=255"`
	Location       string   `json:"location,omitempty" validate:"omitempty,max=255"`
	DistanceKm     float64  `json:"distance_km,omitempty" validate:"omitempty,gte=0"`
	Category       string   `json:"category" validate:"required,oneof=xs small medium large xl xxl"`
	MonthlyPrice   float64  `json:"monthly_price" validate:"required,gt=0"`
	WeeklyPrice    *float64 `json:"weekly_price,omitempty" validate:"omitempty,gt=0"`
	Source         string   `json:"source,omitempty" validate:"omitempty,max=64"`
}

// SubmitCompetitorPriceResponse confirms the submission
type SubmitCompetitorPriceResponse struct {
	Message string `json:"message"`
}

// MarketAnalysisResponse compares our prices against competitors in a category
type MarketAnalysisResponse struct {
	Message            string  `json:"message"`
	Category           string  `json:"category"`
	OurAverage         float64 `json:"our_average"`
	OurSampleSize      int64   `json:"our_sample_size"`
	CompetitorAverage  float64 `json:"competitor_average"`
	CompetitorSamples  int64   `json:"competitor_samples"`
	PriceDifferencePct float64 `json:"price_difference_pct"`
	MarketPosition     string  `json:"market_position"`
}

// PriceIndexResponse reports the price index and its recommendation
type PriceIndexResponse struct {
	Message            string  `json:"message"`
	Category           string  `json:"category"`
	PriceIndex         float64 `json:"price_index"`
	Recommendation     string  `json:"recommendation"`
	SuggestedChangePct float64 `json:"suggested_change_pct"`
}
