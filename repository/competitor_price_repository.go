package repository

import (
	"context"
	"time"

	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
)

// CompetitorPriceRepositoryImpl implements CompetitorPriceRepository
type CompetitorPriceRepositoryImpl struct {
	*BaseRepository[models.CompetitorPrice, models.CompetitorPriceFilter]
}

// NewCompetitorPriceRepository creates a new repository for competitor prices
func NewCompetitorPriceRepository(db *gorm.DB) CompetitorPriceRepository {
	return &CompetitorPriceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CompetitorPrice, models.CompetitorPriceFilter](db),
	}
}

// AverageMonthlyPrice returns the mean monthly price and sample size of
// competitor rows in a category collected since the given time.
func (r *CompetitorPriceRepositoryImpl) AverageMonthlyPrice(ctx context.Context, category models.UnitCategory, since time.Time) (float64, int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Average float64 `json:"average"`
		Total   int64   `json:"total"`
	}
	var res row

	err := db.Model(&models.CompetitorPrice{}).
		Select("COALESCE(AVG(monthly_price), 0) AS average, COUNT(*) AS total").
		Where("category = ? AND collected_at >= ?", category, since).
		Scan(&res).Error
	if err != nil {
		return 0, 0, err
	}

	return res.Average, res.Total, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CompetitorPriceRepositoryImpl) applyFilter(db *gorm.DB, filter models.CompetitorPriceFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CompetitorName != nil {
		db = db.Where("competitor_name = ?", *filter.CompetitorName)
	}
	if filter.Category != nil {
		db = db.Where("category = ?", *filter.Category)
	}
	if filter.Source != nil {
		db = db.Where("source = ?", *filter.Source)
	}
	if filter.CollectedAfter != nil {
		db = db.Where("collected_at >= ?", *filter.CollectedAfter)
	}
	return db
}

// ByFilter retrieves competitor prices based on filter criteria
func (r *CompetitorPriceRepositoryImpl) ByFilter(ctx context.Context, filter models.CompetitorPriceFilter, orderBy string, limit, offset int) ([]*models.CompetitorPrice, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CompetitorPrice{}), filter)

	if orderBy == "" {
		orderBy = "collected_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.CompetitorPrice
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}
