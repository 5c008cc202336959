package dto

// VariantDTO is one pricing treatment in an experiment
type VariantDTO struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Weight        float64 `json:"weight" validate:"gte=0,lte=100"`
	PriceModifier float64 `json:"price_modifier" validate:"gte=-50,lte=50"`
	ModifierType  string  `json:"modifier_type" validate:"required,oneof=percentage fixed"`
}

// CreateExperimentRequest creates a pricing experiment in draft
type CreateExperimentRequest struct {
	Name              string       `json:"name" validate:"required,max=255"`
	SiteUUID          *string      `json:"site_uuid,omitempty" validate:"omitempty,uuid4"`
	Variants          []VariantDTO `json:"variants" validate:"required,min=2,max=4,dive"`
	TrafficPercentage float64      `json:"traffic_percentage" validate:"required,gt=0,lte=100"`
	DurationDays      int          `json:"duration_days" validate:"required,gte=1"`
	MinSampleSize     int          `json:"min_sample_size" validate:"required,gte=1"`
	ConfidenceLevel   int          `json:"confidence_level" validate:"required,oneof=90 95 99"`
}

// ExperimentDTO is an experiment in responses
type ExperimentDTO struct {
	UUID              string       `json:"uuid"`
	Name              string       `json:"name"`
	SiteUUID          *string      `json:"site_uuid,omitempty"`
	Variants          []VariantDTO `json:"variants"`
	TrafficPercentage float64      `json:"traffic_percentage"`
	DurationDays      int          `json:"duration_days"`
	MinSampleSize     int          `json:"min_sample_size"`
	ConfidenceLevel   int          `json:"confidence_level"`
	Status            string       `json:"status"`
	StartedAt         *string      `json:"started_at,omitempty"`
	EndedAt           *string      `json:"ended_at,omitempty"`
	WinningVariant    *string      `json:"winning_variant,omitempty"`
	CreatedAt         string       `json:"created_at"`
}

// CreateExperimentResponse confirms experiment creation
type CreateExperimentResponse struct {
	Message    string        `json:"message"`
	Experiment ExperimentDTO `json:"experiment"`
}

// TransitionExperimentResponse confirms a state change
type TransitionExperimentResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// AssignVariantRequest asks for a visitor's stable variant assignment
type AssignVariantRequest struct {
	ExperimentUUID string `json:"experiment_uuid" validate:"required,uuid4"`
	VisitorKey     string `json:"visitor_key" validate:"required,max=128"`
}

// AssignVariantResponse reports the assignment decision
type AssignVariantResponse struct {
	Message     string  `json:"message"`
	Included    bool    `json:"included"`
	VariantName *string `json:"variant_name,omitempty"`
}

// RecordExposureRequest records a visitor's exposure explicitly
type RecordExposureRequest struct {
	ExperimentUUID string `json:"experiment_uuid" validate:"required,uuid4"`
	VisitorKey     string `json:"visitor_key" validate:"required,max=128"`
}

// RecordExposureResponse reports the assignment the exposure was recorded under
type RecordExposureResponse struct {
	Message     string  `json:"message"`
	Included    bool    `json:"included"`
	VariantName *string `json:"variant_name,omitempty"`
}

// RecordConversionRequest attributes a booking to a visitor's exposure
type RecordConversionRequest struct {
	ExperimentUUID string  `json:"experiment_uuid" validate:"required,uuid4"`
	VisitorKey     string  `json:"visitor_key" validate:"required,max=128"`
	Value          float64 `json:"value" validate:"gte=0"`
}

// RecordConversionResponse reports whether the conversion counted
type RecordConversionResponse struct {
	Message  string `json:"message"`
	Recorded bool   `json:"recorded"`
}

// VariantResultDTO is one variant's aggregate performance
type VariantResultDTO struct {
	Name           string  `json:"name"`
	Exposures      int64   `json:"exposures"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        float64 `json:"revenue"`
	RevenueImpact  float64 `json:"revenue_impact"`
}

// ExperimentResultsResponse reports current experiment performance
type ExperimentResultsResponse struct {
	Message         string             `json:"message"`
	UUID            string             `json:"uuid"`
	Status          string             `json:"status"`
	ProgressPercent float64            `json:"progress_percent"`
	Variants        []VariantResultDTO `json:"variants"`
	Outcome         string             `json:"outcome,omitempty"`
	WinningVariant  *string            `json:"winning_variant,omitempty"`
	PValues         map[string]float64 `json:"p_values,omitempty"`
}

// CompleteExperimentRequest finishes an experiment
type CompleteExperimentRequest struct {
	ExperimentUUID string `json:"experiment_uuid" validate:"required,uuid4"`
	// ApplyWinner opts into pushing the winning modifier to in-scope units
	ApplyWinner bool `json:"apply_winner"`
}

// CompleteExperimentResponse reports the final snapshot
type CompleteExperimentResponse struct {
	Message        string             `json:"message"`
	UUID           string             `json:"uuid"`
	Status         string             `json:"status"`
	Outcome        string             `json:"outcome"`
	WinningVariant *string            `json:"winning_variant,omitempty"`
	Variants       []VariantResultDTO `json:"variants"`
	UnitsAdjusted  int                `json:"units_adjusted"`
}
