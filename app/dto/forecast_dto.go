package dto

// ProjectDemandRequest projects a demand trajectory for a site
type ProjectDemandRequest struct {
	SiteUUID      string  `json:"site_uuid" validate:"required,uuid4"`
	BaseScore     float64 `json:"base_score" validate:"gte=0,lte=100"`
	HorizonMonths int     `json:"horizon_months" validate:"required,gte=1,lte=24"`
	// UseHistory derives the base score from historical occupancy instead of BaseScore
	UseHistory bool `json:"use_history"`
}

// MonthlyDemandDTO is one projected month
type MonthlyDemandDTO struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	DemandScore float64 `json:"demand_score"`
	UpperBound  float64 `json:"upper_bound"`
	LowerBound  float64 `json:"lower_bound"`
	Factor      float64 `json:"factor"`
}

// ProjectDemandResponse returns the projected trajectory
type ProjectDemandResponse struct {
	Message     string             `json:"message"`
	SiteUUID    string             `json:"site_uuid"`
	BaseScore   float64            `json:"base_score"`
	GeneratedAt string             `json:"generated_at"`
	Months      []MonthlyDemandDTO `json:"months"`
}

// WeekdayPatternDTO is one weekday's demand index and pricing suggestion
type WeekdayPatternDTO struct {
	Weekday             string  `json:"weekday"`
	DemandIndex         float64 `json:"demand_index"`
	SuggestedAdjustment float64 `json:"suggested_adjustment"`
}

// WeeklyPatternResponse returns per-weekday demand indices
type WeeklyPatternResponse struct {
	Message string              `json:"message"`
	Source  string              `json:"source"`
	Days    []WeekdayPatternDTO `json:"days"`
}
