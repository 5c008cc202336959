package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
)

// PriceAdjustmentRepositoryImpl implements PriceAdjustmentRepository
type PriceAdjustmentRepositoryImpl struct {
	*BaseRepository[models.PriceAdjustment, models.PriceAdjustmentFilter]
}

// NewPriceAdjustmentRepository creates a new repository for the adjustment ledger
func NewPriceAdjustmentRepository(db *gorm.DB) PriceAdjustmentRepository {
	return &PriceAdjustmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceAdjustment, models.PriceAdjustmentFilter](db),
	}
}

// ByUUID retrieves a ledger entry by its UUID
func (r *PriceAdjustmentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.PriceAdjustment, error) {
	db := r.getDB(ctx)

	var adj models.PriceAdjustment
	err := db.Where("uuid = ?", id).First(&adj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &adj, nil
}

// MarkReverted flips the reverted flag on a ledger entry. This is the only
// mutation the ledger permits; everything else is append-only.
func (r *PriceAdjustmentRepositoryImpl) MarkReverted(ctx context.Context, adjustmentID uint) error {
	db := r.getDB(ctx)

	result := db.Model(&models.PriceAdjustment{}).
		Where("id = ? AND reverted = ?", adjustmentID, false).
		Update("reverted", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark adjustment %d reverted: %w", adjustmentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// CountByTrigger aggregates ledger rows per trigger within a window
func (r *PriceAdjustmentRepositoryImpl) CountByTrigger(ctx context.Context, from, to time.Time) (map[models.AdjustmentTrigger]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Trigger string `json:"trigger"`
		Total   int64  `json:"total"`
	}
	var rows []row

	err := db.Model(&models.PriceAdjustment{}).
		Select("trigger, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("trigger").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[models.AdjustmentTrigger]int64, len(rows))
	for _, rw := range rows {
		out[models.AdjustmentTrigger(rw.Trigger)] = rw.Total
	}

	return out, nil
}

// DailyAverageNewPrice returns the daily mean new_price series for a window
func (r *PriceAdjustmentRepositoryImpl) DailyAverageNewPrice(ctx context.Context, from, to time.Time) ([]DailyAveragePrice, error) {
	db := r.getDB(ctx)

	var rows []DailyAveragePrice
	err := db.Raw(`
		SELECT
			date_trunc('day', created_at) AS day,
			AVG(new_price) AS average_price,
			COUNT(*) AS count
		FROM price_adjustments
		WHERE created_at >= ? AND created_at < ?
		GROUP BY day
		ORDER BY day
	`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ListForExport returns ledger rows with unit and site preloaded, oldest first,
// in the fixed order the flat export requires.
func (r *PriceAdjustmentRepositoryImpl) ListForExport(ctx context.Context, from, to time.Time) ([]*models.PriceAdjustment, error) {
	db := r.getDB(ctx)

	var rows []*models.PriceAdjustment
	err := db.Preload("Unit").Preload("Site").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *PriceAdjustmentRepositoryImpl) applyFilter(db *gorm.DB, filter models.PriceAdjustmentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.UnitID != nil {
		db = db.Where("unit_id = ?", *filter.UnitID)
	}
	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Trigger != nil {
		db = db.Where("trigger = ?", *filter.Trigger)
	}
	if filter.AutoApplied != nil {
		db = db.Where("auto_applied = ?", *filter.AutoApplied)
	}
	if filter.Reverted != nil {
		db = db.Where("reverted = ?", *filter.Reverted)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByFilter retrieves ledger entries based on filter criteria
func (r *PriceAdjustmentRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceAdjustmentFilter, orderBy string, limit, offset int) ([]*models.PriceAdjustment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PriceAdjustment{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PriceAdjustment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}
