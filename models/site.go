package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Site represents a storage facility owning rentable units
type Site struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Name     string    `gorm:"size:255;not null" json:"name"`
	City     string    `gorm:"size:100" json:"city"`
	Timezone string    `gorm:"size:64;default:'UTC'" json:"timezone"`

	// AutoPricing marks the site for scheduled batch recomputes
	AutoPricing bool `gorm:"not null;default:false" json:"auto_pricing"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Units []Unit `gorm:"foreignKey:SiteID" json:"units,omitempty"`
}

func (Site) TableName() string {
	return "sites"
}

// SiteFilter represents filter criteria for site queries
type SiteFilter struct {
	ID          *uint      `json:"id,omitempty"`
	UUID        *uuid.UUID `json:"uuid,omitempty"`
	City        *string    `json:"city,omitempty"`
	AutoPricing *bool      `json:"auto_pricing,omitempty"`
}

// BeforeCreate ensures UUID is set
func (s *Site) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	return nil
}
