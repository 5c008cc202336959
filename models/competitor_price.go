package models

import (
	"time"
)

// CompetitorPrice is one observed competitor rate for a unit category.
// Rows come from manual entry or an external feed; this core only aggregates them.
type CompetitorPrice struct {
	ID             uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	CompetitorName string       `gorm:"size:255;not null" json:"competitor_name"`
	Location       string       `gorm:"size:255" json:"location"`
	DistanceKm     float64      `gorm:"type:numeric(8,2)" json:"distance_km"`
	Category       UnitCategory `gorm:"type:varchar(10);not null;index:idx_competitor_prices_category" json:"category"`

	MonthlyPrice float64  `gorm:"type:numeric(12,2);not null" json:"monthly_price"`
	WeeklyPrice  *float64 `gorm:"type:numeric(12,2)" json:"weekly_price,omitempty"`

	CollectedAt time.Time `gorm:"not null;index:idx_competitor_prices_collected_at" json:"collected_at"`
	Source      string    `gorm:"size:64;not null;default:'manual'" json:"source"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CompetitorPrice) TableName() string {
	return "competitor_prices"
}

// CompetitorPriceFilter represents filter criteria for competitor price queries
type CompetitorPriceFilter struct {
	ID             *uint         `json:"id,omitempty"`
	CompetitorName *string       `json:"competitor_name,omitempty"`
	Category       *UnitCategory `json:"category,omitempty"`
	Source         *string       `json:"source,omitempty"`
	CollectedAfter *time.Time    `json:"collected_after,omitempty"`
}
