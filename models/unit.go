package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitStatus represents the rental status of a unit
type UnitStatus string

const (
	UnitStatusAvailable   UnitStatus = "available"
	UnitStatusOccupied    UnitStatus = "occupied"
	UnitStatusMaintenance UnitStatus = "maintenance"
)

// String returns the string representation of the status
func (s UnitStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusAvailable, UnitStatusOccupied, UnitStatusMaintenance:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for UnitStatus
func (s *UnitStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = UnitStatus(v)
	case []byte:
		*s = UnitStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into UnitStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for UnitStatus
func (s UnitStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid UnitStatus: %s", s)
	}
	return string(s), nil
}

// UnitCategory is the size class of a unit, derived from its area
type UnitCategory string

const (
	UnitCategoryXS     UnitCategory = "xs"
	UnitCategorySmall  UnitCategory = "small"
	UnitCategoryMedium UnitCategory = "medium"
	UnitCategoryLarge  UnitCategory = "large"
	UnitCategoryXL     UnitCategory = "xl"
	UnitCategoryXXL    UnitCategory = "xxl"
)

// String returns the string representation of the category
func (c UnitCategory) String() string {
	return string(c)
}

// Valid checks if the category is valid
func (c UnitCategory) Valid() bool {
	switch c {
	case UnitCategoryXS, UnitCategorySmall, UnitCategoryMedium,
		UnitCategoryLarge, UnitCategoryXL, UnitCategoryXXL:
		return true
	default:
		return false
	}
}

// CategoryForArea maps an area in square meters to its size class.
// Thresholds are fixed for comparability across tenants.
func CategoryForArea(areaSqm float64) UnitCategory {
	switch {
	case areaSqm < 2:
		return UnitCategoryXS
	case areaSqm < 5:
		return UnitCategorySmall
	case areaSqm < 10:
		return UnitCategoryMedium
	case areaSqm < 20:
		return UnitCategoryLarge
	case areaSqm < 30:
		return UnitCategoryXL
	default:
		return UnitCategoryXXL
	}
}

// Unit represents a rentable storage unit.
// CurrentPrice is mutated only by the price adjustment flow.
type Unit struct {
	ID         uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID    `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	SiteID     uint         `gorm:"not null;index:idx_units_site_id" json:"site_id"`
	UnitNumber string       `gorm:"size:32;not null" json:"unit_number"`
	AreaSqm    float64      `gorm:"type:numeric(8,2);not null" json:"area_sqm"`
	Category   UnitCategory `gorm:"type:varchar(10);not null;index:idx_units_category" json:"category"`

	BasePrice    float64    `gorm:"type:numeric(12,2);not null" json:"base_price"`
	CurrentPrice float64    `gorm:"type:numeric(12,2);not null" json:"current_price"`
	Status       UnitStatus `gorm:"type:varchar(20);not null;default:'available';index:idx_units_status" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Site        Site              `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"site,omitempty"`
	Adjustments []PriceAdjustment `gorm:"foreignKey:UnitID" json:"adjustments,omitempty"`
}

func (Unit) TableName() string {
	return "units"
}

// UnitFilter represents filter criteria for unit queries
type UnitFilter struct {
	ID       *uint         `json:"id,omitempty"`
	UUID     *uuid.UUID    `json:"uuid,omitempty"`
	SiteID   *uint         `json:"site_id,omitempty"`
	Category *UnitCategory `json:"category,omitempty"`
	Status   *UnitStatus   `json:"status,omitempty"`
}

// BeforeCreate ensures UUID and derived category are set
func (u *Unit) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.Category == "" {
		u.Category = CategoryForArea(u.AreaSqm)
	}
	return nil
}
