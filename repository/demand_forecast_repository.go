package repository

import (
	"context"
	"errors"

	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
)

// DemandForecastRepositoryImpl implements DemandForecastRepository
type DemandForecastRepositoryImpl struct {
	*BaseRepository[models.DemandForecast, models.DemandForecastFilter]
}

// NewDemandForecastRepository creates a new repository for demand forecasts
func NewDemandForecastRepository(db *gorm.DB) DemandForecastRepository {
	return &DemandForecastRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DemandForecast, models.DemandForecastFilter](db),
	}
}

// LatestForSite returns the most recent forecast row per (year, month) for a site
func (r *DemandForecastRepositoryImpl) LatestForSite(ctx context.Context, siteID uint) ([]*models.DemandForecast, error) {
	db := r.getDB(ctx)

	var rows []*models.DemandForecast
	err := db.Raw(`
		SELECT DISTINCT ON (year, month)
			id, site_id, month, year, demand_score, upper_bound, lower_bound, generated_at, created_at
		FROM demand_forecasts
		WHERE site_id = ?
		ORDER BY year, month, generated_at DESC
	`, siteID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// LatestScoreForMonth returns the newest forecast for one site-month, or nil
func (r *DemandForecastRepositoryImpl) LatestScoreForMonth(ctx context.Context, siteID uint, year, month int) (*models.DemandForecast, error) {
	db := r.getDB(ctx)

	var row models.DemandForecast
	err := db.Where("site_id = ? AND year = ? AND month = ?", siteID, year, month).
		Order("generated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *DemandForecastRepositoryImpl) applyFilter(db *gorm.DB, filter models.DemandForecastFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Month != nil {
		db = db.Where("month = ?", *filter.Month)
	}
	if filter.Year != nil {
		db = db.Where("year = ?", *filter.Year)
	}
	if filter.GeneratedAfter != nil {
		db = db.Where("generated_at >= ?", *filter.GeneratedAfter)
	}
	return db
}

// ByFilter retrieves forecasts based on filter criteria
func (r *DemandForecastRepositoryImpl) ByFilter(ctx context.Context, filter models.DemandForecastFilter, orderBy string, limit, offset int) ([]*models.DemandForecast, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DemandForecast{}), filter)

	if orderBy == "" {
		orderBy = "generated_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.DemandForecast
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}
