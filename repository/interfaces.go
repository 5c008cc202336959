// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// SiteRepository defines operations for sites
type SiteRepository interface {
	Repository[models.Site, models.SiteFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Site, error)
	ListAutoPricing(ctx context.Context) ([]*models.Site, error)
}

// UnitRepository defines operations for storage units
type UnitRepository interface {
	Repository[models.Unit, models.UnitFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Unit, error)
	// ByUUIDForUpdate re-reads the unit inside the ambient transaction with a row lock
	ByUUIDForUpdate(ctx context.Context, uuid uuid.UUID) (*models.Unit, error)
	ListAvailable(ctx context.Context, siteID *uint) ([]*models.Unit, error)
	UpdateCurrentPrice(ctx context.Context, unitID uint, newPrice float64) error
	AverageCurrentPrice(ctx context.Context, category models.UnitCategory, siteID *uint) (float64, int64, error)
	OccupancyRate(ctx context.Context, siteID uint) (float64, error)
}

// PriceAdjustmentRepository defines operations for the append-only adjustment ledger
type PriceAdjustmentRepository interface {
	Repository[models.PriceAdjustment, models.PriceAdjustmentFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.PriceAdjustment, error)
	MarkReverted(ctx context.Context, adjustmentID uint) error
	CountByTrigger(ctx context.Context, from, to time.Time) (map[models.AdjustmentTrigger]int64, error)
	DailyAverageNewPrice(ctx context.Context, from, to time.Time) ([]DailyAveragePrice, error)
	ListForExport(ctx context.Context, from, to time.Time) ([]*models.PriceAdjustment, error)
}

// DailyAveragePrice is one point of the daily mean new_price series
type DailyAveragePrice struct {
	Day          time.Time `json:"day"`
	AveragePrice float64   `json:"average_price"`
	Count        int64     `json:"count"`
}

// PricingExperimentRepository defines operations for pricing experiments
type PricingExperimentRepository interface {
	Repository[models.PricingExperiment, models.PricingExperimentFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.PricingExperiment, error)
	// ByUUIDForUpdate locks the experiment row for a state transition
	ByUUIDForUpdate(ctx context.Context, uuid uuid.UUID) (*models.PricingExperiment, error)
	Update(ctx context.Context, experiment *models.PricingExperiment) error
	ListRunning(ctx context.Context) ([]*models.PricingExperiment, error)
}

// ExperimentExposureRepository defines operations for visitor exposures
type ExperimentExposureRepository interface {
	Repository[models.ExperimentExposure, models.ExperimentExposureFilter]
	ByExperimentAndVisitor(ctx context.Context, experimentID uint, visitorKey string) (*models.ExperimentExposure, error)
	// UpsertExposure inserts the assignment if absent; the existing row wins on conflict.
	// Returns the row that is now persisted.
	UpsertExposure(ctx context.Context, exposure *models.ExperimentExposure) (*models.ExperimentExposure, error)
	MarkConverted(ctx context.Context, experimentID uint, visitorKey string, value float64, at time.Time) (bool, error)
	CountsByVariant(ctx context.Context, experimentID uint) ([]models.VariantCounts, error)
}

// CompetitorPriceRepository defines operations for competitor price observations
type CompetitorPriceRepository interface {
	Repository[models.CompetitorPrice, models.CompetitorPriceFilter]
	AverageMonthlyPrice(ctx context.Context, category models.UnitCategory, since time.Time) (float64, int64, error)
}

// DemandForecastRepository defines operations for demand forecasts
type DemandForecastRepository interface {
	Repository[models.DemandForecast, models.DemandForecastFilter]
	LatestForSite(ctx context.Context, siteID uint) ([]*models.DemandForecast, error)
	LatestScoreForMonth(ctx context.Context, siteID uint, year, month int) (*models.DemandForecast, error)
}
