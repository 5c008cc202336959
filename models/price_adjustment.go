package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdjustmentTrigger is the causal category of a price change
type AdjustmentTrigger string

const (
	TriggerOccupancy   AdjustmentTrigger = "occupancy"
	TriggerDemand      AdjustmentTrigger = "demand"
	TriggerCompetitor  AdjustmentTrigger = "competitor"
	TriggerSeasonality AdjustmentTrigger = "seasonality"
	TriggerManual      AdjustmentTrigger = "manual"
	TriggerABTest      AdjustmentTrigger = "ab_test"
)

// String returns the string representation of the trigger
func (t AdjustmentTrigger) String() string {
	return string(t)
}

// Valid checks if the trigger is valid
func (t AdjustmentTrigger) Valid() bool {
	switch t {
	case TriggerOccupancy, TriggerDemand, TriggerCompetitor,
		TriggerSeasonality, TriggerManual, TriggerABTest:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AdjustmentTrigger
func (t *AdjustmentTrigger) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = AdjustmentTrigger(v)
	case []byte:
		*t = AdjustmentTrigger(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AdjustmentTrigger", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AdjustmentTrigger
func (t AdjustmentTrigger) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid AdjustmentTrigger: %s", t)
	}
	return string(t), nil
}

// OccupancyDetails carries the inputs of an occupancy-triggered change
type OccupancyDetails struct {
	OccupancyRate float64 `json:"occupancy_rate"`
	TargetLow     float64 `json:"target_low"`
	TargetHigh    float64 `json:"target_high"`
}

// DemandDetails carries the inputs of a demand-triggered change
type DemandDetails struct {
	DemandScore float64 `json:"demand_score"`
	Month       int     `json:"month,omitempty"`
}

// CompetitorDetails carries the inputs of a competitor-triggered change
type CompetitorDetails struct {
	CompetitorAverage float64 `json:"competitor_average"`
	SampleSize        int     `json:"sample_size"`
}

// SeasonalityDetails carries the inputs of a seasonality-triggered change
type SeasonalityDetails struct {
	Month  int     `json:"month"`
	Factor float64 `json:"factor"`
}

// ManualDetails carries the inputs of a manual change
type ManualDetails struct {
	TargetPrice float64 `json:"target_price"`
	Reason      string  `json:"reason,omitempty"`
	// RevertOf references the adjustment being undone, when this entry documents a revert
	RevertOf *uuid.UUID `json:"revert_of,omitempty"`
}

// ABTestDetails carries the inputs of an experiment-winner application
type ABTestDetails struct {
	ExperimentUUID uuid.UUID `json:"experiment_uuid"`
	VariantName    string    `json:"variant_name"`
	Modifier       float64   `json:"modifier"`
	ModifierType   string    `json:"modifier_type"`
}

// TriggerDetails is the structured, trigger-specific payload of a ledger entry.
// Exactly one field is set, matching the entry's trigger.
type TriggerDetails struct {
	Occupancy   *OccupancyDetails   `json:"occupancy,omitempty"`
	Demand      *DemandDetails      `json:"demand,omitempty"`
	Competitor  *CompetitorDetails  `json:"competitor,omitempty"`
	Seasonality *SeasonalityDetails `json:"seasonality,omitempty"`
	Manual      *ManualDetails      `json:"manual,omitempty"`
	ABTest      *ABTestDetails      `json:"ab_test,omitempty"`
}

// Value implements the driver.Valuer interface for TriggerDetails
func (d TriggerDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for TriggerDetails
func (d *TriggerDetails) Scan(value any) error {
	if value == nil {
		*d = TriggerDetails{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TriggerDetails", value)
	}

	return json.Unmarshal(bytes, d)
}

// PriceAdjustment is an append-only ledger entry recording one price change.
// Rows are never mutated or deleted except for the Reverted flag; a revert
// appends a new entry rather than erasing history.
type PriceAdjustment struct {
	ID     uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	UnitID uint      `gorm:"not null;index:idx_price_adjustments_unit_id" json:"unit_id"`
	SiteID uint      `gorm:"not null;index:idx_price_adjustments_site_id" json:"site_id"`

	OldPrice             float64 `gorm:"type:numeric(12,2);not null" json:"old_price"`
	NewPrice             float64 `gorm:"type:numeric(12,2);not null" json:"new_price"`
	AdjustmentPercentage float64 `gorm:"type:numeric(8,4);not null" json:"adjustment_percentage"`

	Trigger        AdjustmentTrigger `gorm:"type:varchar(20);not null;index:idx_price_adjustments_trigger" json:"trigger"`
	TriggerDetails TriggerDetails    `gorm:"type:jsonb;not null;default:'{}'" json:"trigger_details"`

	AutoApplied    bool     `gorm:"not null;default:false" json:"auto_applied"`
	MeasuredImpact *float64 `gorm:"type:numeric(12,4)" json:"measured_impact,omitempty"`
	Reverted       bool     `gorm:"not null;default:false" json:"reverted"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_price_adjustments_created_at" json:"created_at"`

	Unit Unit `gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE" json:"unit,omitempty"`
	Site Site `gorm:"foreignKey:SiteID" json:"site,omitempty"`
}

func (PriceAdjustment) TableName() string {
	return "price_adjustments"
}

// PriceAdjustmentFilter represents filter criteria for ledger queries
type PriceAdjustmentFilter struct {
	ID            *uint              `json:"id,omitempty"`
	UUID          *uuid.UUID         `json:"uuid,omitempty"`
	UnitID        *uint              `json:"unit_id,omitempty"`
	SiteID        *uint              `json:"site_id,omitempty"`
	Trigger       *AdjustmentTrigger `json:"trigger,omitempty"`
	AutoApplied   *bool              `json:"auto_applied,omitempty"`
	Reverted      *bool              `json:"reverted,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

// BeforeCreate ensures UUID is set
func (a *PriceAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}
