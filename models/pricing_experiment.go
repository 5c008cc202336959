package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExperimentStatus represents the lifecycle state of a pricing experiment
type ExperimentStatus string

const (
	ExperimentStatusDraft     ExperimentStatus = "draft"
	ExperimentStatusRunning   ExperimentStatus = "running"
	ExperimentStatusPaused    ExperimentStatus = "paused"
	ExperimentStatusCompleted ExperimentStatus = "completed"
)

// String returns the string representation of the status
func (s ExperimentStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ExperimentStatus) Valid() bool {
	switch s {
	case ExperimentStatusDraft, ExperimentStatusRunning,
		ExperimentStatusPaused, ExperimentStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ExperimentStatus
func (s *ExperimentStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ExperimentStatus(v)
	case []byte:
		*s = ExperimentStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ExperimentStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ExperimentStatus
func (s ExperimentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ExperimentStatus: %s", s)
	}
	return string(s), nil
}

// ModifierType selects how a variant's price modifier is applied
const (
	ModifierTypePercentage = "percentage"
	ModifierTypeFixed      = "fixed"
)

// Variant is one pricing treatment within an experiment.
// The variant at index 0 is the implicit control.
type Variant struct {
	Name          string  `json:"name"`
	Weight        float64 `json:"weight"`
	PriceModifier float64 `json:"price_modifier"`
	ModifierType  string  `json:"modifier_type"`
}

// VariantList is the JSONB-persisted ordered variant set
type VariantList []Variant

// Value implements the driver.Valuer interface for VariantList
func (v VariantList) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface for VariantList
func (v *VariantList) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}

	var bytes []byte
	switch x := value.(type) {
	case []byte:
		bytes = x
	case string:
		bytes = []byte(x)
	default:
		return fmt.Errorf("cannot scan %T into VariantList", value)
	}

	return json.Unmarshal(bytes, v)
}

// VariantResult is the per-variant slice of a results snapshot
type VariantResult struct {
	Name           string  `json:"name"`
	Exposures      int64   `json:"exposures"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        float64 `json:"revenue"`
	// RevenueImpact compares incremental conversions against control, zero for control itself
	RevenueImpact float64 `json:"revenue_impact"`
}

// ExperimentResults is the snapshot persisted when an experiment completes
type ExperimentResults struct {
	Variants        []VariantResult `json:"variants"`
	ProgressPercent float64         `json:"progress_percent"`
	Outcome         string          `json:"outcome"`
	WinningVariant  *string         `json:"winning_variant,omitempty"`
	// PValues maps treatment variant name to the two-proportion test p-value against control
	PValues    map[string]float64 `json:"p_values,omitempty"`
	ComputedAt time.Time          `json:"computed_at"`
}

// Value implements the driver.Valuer interface for ExperimentResults
func (r ExperimentResults) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for ExperimentResults
func (r *ExperimentResults) Scan(value any) error {
	if value == nil {
		*r = ExperimentResults{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ExperimentResults", value)
	}

	return json.Unmarshal(bytes, r)
}

// PricingExperiment governs one pricing A/B test.
// Immutable once completed except for the winner-application side effect.
type PricingExperiment struct {
	ID     uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID   uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Name   string     `gorm:"size:255;not null" json:"name"`
	SiteID *uint      `gorm:"index:idx_pricing_experiments_site_id" json:"site_id,omitempty"`

	Variants          VariantList `gorm:"type:jsonb;not null" json:"variants"`
	TrafficPercentage float64     `gorm:"type:numeric(5,2);not null" json:"traffic_percentage"`
	DurationDays      int         `gorm:"not null" json:"duration_days"`
	MinSampleSize     int         `gorm:"not null" json:"min_sample_size"`
	ConfidenceLevel   int         `gorm:"not null;default:95" json:"confidence_level"`

	Status         ExperimentStatus   `gorm:"type:varchar(20);not null;default:'draft';index:idx_pricing_experiments_status" json:"status"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	EndedAt        *time.Time         `json:"ended_at,omitempty"`
	WinningVariant *string            `gorm:"size:255" json:"winning_variant,omitempty"`
	Results        *ExperimentResults `gorm:"type:jsonb" json:"results,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Site      *Site                `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	Exposures []ExperimentExposure `gorm:"foreignKey:ExperimentID" json:"exposures,omitempty"`
}

func (PricingExperiment) TableName() string {
	return "pricing_experiments"
}

// Control returns the control variant (index 0)
func (e *PricingExperiment) Control() *Variant {
	if len(e.Variants) == 0 {
		return nil
	}
	return &e.Variants[0]
}

// VariantByName returns the named variant, or nil
func (e *PricingExperiment) VariantByName(name string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i]
		}
	}
	return nil
}

// PricingExperimentFilter represents filter criteria for experiment queries
type PricingExperimentFilter struct {
	ID     *uint             `json:"id,omitempty"`
	UUID   *uuid.UUID        `json:"uuid,omitempty"`
	SiteID *uint             `json:"site_id,omitempty"`
	Status *ExperimentStatus `json:"status,omitempty"`
}

// BeforeCreate ensures UUID is set
func (e *PricingExperiment) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	return nil
}
