package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
)

// SiteRepositoryImpl implements SiteRepository
type SiteRepositoryImpl struct {
	*BaseRepository[models.Site, models.SiteFilter]
}

// NewSiteRepository creates a new repository for sites
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &SiteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Site, models.SiteFilter](db),
	}
}

// ByUUID retrieves a site by its UUID
func (r *SiteRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	db := r.getDB(ctx)

	var site models.Site
	err := db.Where("uuid = ?", id).First(&site).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &site, nil
}

// ListAutoPricing returns sites flagged for scheduled batch recomputes
func (r *SiteRepositoryImpl) ListAutoPricing(ctx context.Context) ([]*models.Site, error) {
	db := r.getDB(ctx)

	var sites []*models.Site
	err := db.Where("auto_pricing = ?", true).Order("id").Find(&sites).Error
	if err != nil {
		return nil, err
	}

	return sites, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *SiteRepositoryImpl) applyFilter(db *gorm.DB, filter models.SiteFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.City != nil {
		db = db.Where("city = ?", *filter.City)
	}
	if filter.AutoPricing != nil {
		db = db.Where("auto_pricing = ?", *filter.AutoPricing)
	}
	return db
}

// ByFilter retrieves sites based on filter criteria
func (r *SiteRepositoryImpl) ByFilter(ctx context.Context, filter models.SiteFilter, orderBy string, limit, offset int) ([]*models.Site, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Site{}), filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var sites []*models.Site
	if err := query.Find(&sites).Error; err != nil {
		return nil, err
	}

	return sites, nil
}
