package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnitRepositoryImpl implements UnitRepository
type UnitRepositoryImpl struct {
	*BaseRepository[models.Unit, models.UnitFilter]
}

// NewUnitRepository creates a new repository for storage units
func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &UnitRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Unit, models.UnitFilter](db),
	}
}

// ByUUID retrieves a unit by its UUID
func (r *UnitRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	db := r.getDB(ctx)

	var unit models.Unit
	err := db.Where("uuid = ?", id).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &unit, nil
}

// ByUUIDForUpdate re-reads the unit with a row lock. Callers must run inside
// WithTransaction; concurrent price changes for the same unit serialize here.
func (r *UnitRepositoryImpl) ByUUIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	db := r.getDB(ctx)

	var unit models.Unit
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", id).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &unit, nil
}

// ListAvailable returns available units, optionally scoped to a site
func (r *UnitRepositoryImpl) ListAvailable(ctx context.Context, siteID *uint) ([]*models.Unit, error) {
	db := r.getDB(ctx)

	query := db.Where("status = ?", models.UnitStatusAvailable)
	if siteID != nil {
		query = query.Where("site_id = ?", *siteID)
	}

	var units []*models.Unit
	if err := query.Order("id").Find(&units).Error; err != nil {
		return nil, err
	}

	return units, nil
}

// UpdateCurrentPrice sets the unit's current price. Meant to be called inside
// a transaction that already holds the row lock.
func (r *UnitRepositoryImpl) UpdateCurrentPrice(ctx context.Context, unitID uint, newPrice float64) error {
	db := r.getDB(ctx)

	result := db.Model(&models.Unit{}).
		Where("id = ?", unitID).
		Updates(map[string]any{
			"current_price": newPrice,
			"updated_at":    utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update current price for unit %d: %w", unitID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// AverageCurrentPrice returns the mean current price of available units in a
// category, optionally scoped to a site, along with the sample size.
func (r *UnitRepositoryImpl) AverageCurrentPrice(ctx context.Context, category models.UnitCategory, siteID *uint) (float64, int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Average float64 `json:"average"`
		Total   int64   `json:"total"`
	}
	var res row

	query := db.Model(&models.Unit{}).
		Select("COALESCE(AVG(current_price), 0) AS average, COUNT(*) AS total").
		Where("status = ? AND category = ?", models.UnitStatusAvailable, category)
	if siteID != nil {
		query = query.Where("site_id = ?", *siteID)
	}

	if err := query.Scan(&res).Error; err != nil {
		return 0, 0, err
	}

	return res.Average, res.Total, nil
}

// OccupancyRate returns the fraction of non-maintenance units that are occupied
func (r *UnitRepositoryImpl) OccupancyRate(ctx context.Context, siteID uint) (float64, error) {
	db := r.getDB(ctx)

	type row struct {
		Occupied int64 `json:"occupied"`
		Total    int64 `json:"total"`
	}
	var res row

	err := db.Raw(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'occupied') AS occupied,
			COUNT(*) AS total
		FROM units
		WHERE site_id = ? AND status <> 'maintenance'
	`, siteID).Scan(&res).Error
	if err != nil {
		return 0, err
	}
	if res.Total == 0 {
		return 0, nil
	}

	return float64(res.Occupied) / float64(res.Total), nil
}

// applyFilter applies filter conditions to the GORM query
func (r *UnitRepositoryImpl) applyFilter(db *gorm.DB, filter models.UnitFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Category != nil {
		db = db.Where("category = ?", *filter.Category)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

// ByFilter retrieves units based on filter criteria
func (r *UnitRepositoryImpl) ByFilter(ctx context.Context, filter models.UnitFilter, orderBy string, limit, offset int) ([]*models.Unit, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Unit{}), filter)

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

	var units []*models.Unit
	if err := query.Find(&units).Error; err != nil {
		return nil, err
	}

	return units, nil
}
