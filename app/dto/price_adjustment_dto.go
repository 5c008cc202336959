package dto

// OccupancyDetailsDTO carries occupancy trigger inputs
type OccupancyDetailsDTO struct {
	OccupancyRate float64 `json:"occupancy_rate" validate:"gte=0,lte=1"`
	TargetLow     float64 `json:"target_low,omitempty" validate:"omitempty,gte=0,lte=1"`
	TargetHigh    float64 `json:"target_high,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// DemandDetailsDTO carries demand trigger inputs
type DemandDetailsDTO struct {
	DemandScore float64 `json:"demand_score" validate:"gte=0,lte=100"`
	Month       int     `json:"month,omitempty" validate:"omitempty,gte=1,lte=12"`
}

// SeasonalityDetailsDTO carries seasonality trigger inputs
type SeasonalityDetailsDTO struct {
	Month int `json:"month" validate:"required,gte=1,lte=12"`
}

// ManualDetailsDTO carries manual trigger inputs
type ManualDetailsDTO struct {
	TargetPrice float64 `json:"target_price" validate:"required,gt=0"`
	Reason      string  `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ProposeAdjustmentRequest asks for a candidate price without applying it
type ProposeAdjustmentRequest struct {
	UnitUUID    string                 `json:"unit_uuid" validate:"required,uuid4"`
	Trigger     string                 `json:"trigger" validate:"required,oneof=occupancy demand competitor seasonality manual"`
	Occupancy   *OccupancyDetailsDTO   `json:"occupancy,omitempty"`
	Demand      *DemandDetailsDTO      `json:"demand,omitempty"`
	Seasonality *SeasonalityDetailsDTO `json:"seasonality,omitempty"`
	Manual      *ManualDetailsDTO      `json:"manual,omitempty"`
}

// ProposeAdjustmentResponse returns the candidate and its relative change
type ProposeAdjustmentResponse struct {
	Message              string  `json:"message"`
	UnitUUID             string  `json:"unit_uuid"`
	CurrentPrice         float64 `json:"current_price"`
	CandidatePrice       float64 `json:"candidate_price"`
	AdjustmentPercentage float64 `json:"adjustment_percentage"`
	Trigger              string  `json:"trigger"`
}

// ApplyAdjustmentRequest applies a price change atomically
type ApplyAdjustmentRequest struct {
	UnitUUID    string                 `json:"unit_uuid" validate:"required,uuid4"`
	NewPrice    float64                `json:"new_price" validate:"required,gt=0"`
	Trigger     string                 `json:"trigger" validate:"required,oneof=occupancy demand competitor seasonality manual"`
	AutoApplied bool                   `json:"auto_applied"`
	Occupancy   *OccupancyDetailsDTO   `json:"occupancy,omitempty"`
	Demand      *DemandDetailsDTO      `json:"demand,omitempty"`
	Seasonality *SeasonalityDetailsDTO `json:"seasonality,omitempty"`
	Manual      *ManualDetailsDTO      `json:"manual,omitempty"`
}

// AdjustmentDTO is one ledger entry in responses
type AdjustmentDTO struct {
	UUID                 string  `json:"uuid"`
	UnitUUID             string  `json:"unit_uuid"`
	OldPrice             float64 `json:"old_price"`
	NewPrice             float64 `json:"new_price"`
	AdjustmentPercentage float64 `json:"adjustment_percentage"`
	Trigger              string  `json:"trigger"`
	AutoApplied          bool    `json:"auto_applied"`
	Reverted             bool    `json:"reverted"`
	CreatedAt            string  `json:"created_at"`
}

// ApplyAdjustmentResponse confirms a committed adjustment
type ApplyAdjustmentResponse struct {
	Message    string        `json:"message"`
	Adjustment AdjustmentDTO `json:"adjustment"`
}

// BatchUpdateRequest recomputes prices across a scope of units
type BatchUpdateRequest struct {
	SiteUUID  *string `json:"site_uuid,omitempty" validate:"omitempty,uuid4"`
	AutoApply bool    `json:"auto_apply"`
}

// BatchPreviewItem is one unit's proposed change in a preview batch
type BatchPreviewItem struct {
	UnitUUID       string  `json:"unit_uuid"`
	CurrentPrice   float64 `json:"current_price"`
	CandidatePrice float64 `json:"candidate_price"`
	Trigger        string  `json:"trigger"`
}

// BatchFailureItem records one unit that could not be processed
type BatchFailureItem struct {
	UnitUUID string `json:"unit_uuid"`
	Reason   string `json:"reason"`
}

// BatchUpdateResponse summarizes a batch recompute
type BatchUpdateResponse struct {
	Message   string             `json:"message"`
	Processed int                `json:"processed"`
	Adjusted  int                `json:"adjusted"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Increased int                `json:"increased"`
	Decreased int                `json:"decreased"`
	Previews  []BatchPreviewItem `json:"previews,omitempty"`
	Failures  []BatchFailureItem `json:"failures,omitempty"`
}

// RevertAdjustmentRequest undoes a recent adjustment
type RevertAdjustmentRequest struct {
	AdjustmentUUID string `json:"adjustment_uuid" validate:"required,uuid4"`
}

// RevertAdjustmentResponse confirms the revert and returns the new ledger entry
type RevertAdjustmentResponse struct {
	Message       string        `json:"message"`
	RestoredPrice float64       `json:"restored_price"`
	RevertEntry   AdjustmentDTO `json:"revert_entry"`
	OriginalEntry AdjustmentDTO `json:"original_entry"`
}
