package models

import (
	"time"
)

// DemandForecast is one projected demand score for a site and calendar month.
// Forecasts are regenerated on demand; the newest generated_at supersedes
// older rows rather than updating them in place.
type DemandForecast struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID uint `gorm:"not null;index:idx_demand_forecasts_site_id" json:"site_id"`

	Month int `gorm:"not null" json:"month"`
	Year  int `gorm:"not null" json:"year"`

	DemandScore float64 `gorm:"type:numeric(5,2);not null" json:"demand_score"`
	UpperBound  float64 `gorm:"type:numeric(5,2);not null" json:"upper_bound"`
	LowerBound  float64 `gorm:"type:numeric(5,2);not null" json:"lower_bound"`

	GeneratedAt time.Time `gorm:"not null;index:idx_demand_forecasts_generated_at" json:"generated_at"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Site Site `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"site,omitempty"`
}

func (DemandForecast) TableName() string {
	return "demand_forecasts"
}

// DemandForecastFilter represents filter criteria for forecast queries
type DemandForecastFilter struct {
	ID             *uint      `json:"id,omitempty"`
	SiteID         *uint      `json:"site_id,omitempty"`
	Month          *int       `json:"month,omitempty"`
	Year           *int       `json:"year,omitempty"`
	GeneratedAfter *time.Time `json:"generated_after,omitempty"`
}
