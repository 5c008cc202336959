package models

import (
	"time"
)

// ExperimentExposure records the stable variant assignment of one visitor.
// Unique per (experiment, visitor); the conversion fields are set at most once.
type ExperimentExposure struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ExperimentID uint   `gorm:"not null;uniqueIndex:uk_experiment_exposures_visitor,priority:1" json:"experiment_id"`
	VisitorKey   string `gorm:"size:128;not null;uniqueIndex:uk_experiment_exposures_visitor,priority:2" json:"visitor_key"`

	// Included is false when the traffic gate excluded the visitor; VariantName is empty then
	Included    bool   `gorm:"not null;default:true" json:"included"`
	VariantName string `gorm:"size:255" json:"variant_name"`

	Converted       bool       `gorm:"not null;default:false" json:"converted"`
	ConversionValue float64    `gorm:"type:numeric(12,2);not null;default:0" json:"conversion_value"`
	ConvertedAt     *time.Time `json:"converted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Experiment PricingExperiment `gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE" json:"experiment,omitempty"`
}

func (ExperimentExposure) TableName() string {
	return "experiment_exposures"
}

// ExperimentExposureFilter represents filter criteria for exposure queries
type ExperimentExposureFilter struct {
	ID           *uint   `json:"id,omitempty"`
	ExperimentID *uint   `json:"experiment_id,omitempty"`
	VisitorKey   *string `json:"visitor_key,omitempty"`
	VariantName  *string `json:"variant_name,omitempty"`
	Converted    *bool   `json:"converted,omitempty"`
	Included     *bool   `json:"included,omitempty"`
}

// VariantCounts is an aggregated exposure/conversion row per variant
type VariantCounts struct {
	VariantName string  `json:"variant_name"`
	Exposures   int64   `json:"exposures"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}
