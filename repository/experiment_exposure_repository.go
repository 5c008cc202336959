package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExperimentExposureRepositoryImpl implements ExperimentExposureRepository
type ExperimentExposureRepositoryImpl struct {
	*BaseRepository[models.ExperimentExposure, models.ExperimentExposureFilter]
}

// NewExperimentExposureRepository creates a new repository for visitor exposures
func NewExperimentExposureRepository(db *gorm.DB) ExperimentExposureRepository {
	return &ExperimentExposureRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ExperimentExposure, models.ExperimentExposureFilter](db),
	}
}

// ByExperimentAndVisitor retrieves the exposure row for one visitor
func (r *ExperimentExposureRepositoryImpl) ByExperimentAndVisitor(ctx context.Context, experimentID uint, visitorKey string) (*models.ExperimentExposure, error) {
	db := r.getDB(ctx)

	var exposure models.ExperimentExposure
	err := db.Where("experiment_id = ? AND visitor_key = ?", experimentID, visitorKey).
		First(&exposure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &exposure, nil
}

// UpsertExposure inserts the assignment if absent. On conflict the existing
// row wins, keeping assignment idempotent under concurrent first visits.
func (r *ExperimentExposureRepositoryImpl) UpsertExposure(ctx context.Context, exposure *models.ExperimentExposure) (*models.ExperimentExposure, error) {
	db := r.getDB(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "experiment_id"}, {Name: "visitor_key"}},
		DoNothing: true,
	}).Create(exposure).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert exposure: %w", err)
	}

	// Re-read so a lost conflict still returns the persisted assignment
	return r.ByExperimentAndVisitor(ctx, exposure.ExperimentID, exposure.VisitorKey)
}

// MarkConverted records a conversion once for an included exposure.
// Returns false when there was no exposure to convert or it already converted.
func (r *ExperimentExposureRepositoryImpl) MarkConverted(ctx context.Context, experimentID uint, visitorKey string, value float64, at time.Time) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.ExperimentExposure{}).
		Where("experiment_id = ? AND visitor_key = ? AND included = ? AND converted = ?",
			experimentID, visitorKey, true, false).
		Updates(map[string]any{
			"converted":        true,
			"conversion_value": value,
			"converted_at":     at,
			"updated_at":       at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark conversion: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// CountsByVariant aggregates exposures, conversions and revenue per variant
// for included visitors only.
func (r *ExperimentExposureRepositoryImpl) CountsByVariant(ctx context.Context, experimentID uint) ([]models.VariantCounts, error) {
	db := r.getDB(ctx)

	var rows []models.VariantCounts
	err := db.Raw(`
		SELECT
			variant_name,
			COUNT(*) AS exposures,
			COUNT(*) FILTER (WHERE converted) AS conversions,
			COALESCE(SUM(conversion_value) FILTER (WHERE converted), 0) AS revenue
		FROM experiment_exposures
		WHERE experiment_id = ? AND included = TRUE
		GROUP BY variant_name
	`, experimentID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *ExperimentExposureRepositoryImpl) applyFilter(db *gorm.DB, filter models.ExperimentExposureFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.ExperimentID != nil {
		db = db.Where("experiment_id = ?", *filter.ExperimentID)
	}
	if filter.VisitorKey != nil {
		db = db.Where("visitor_key = ?", *filter.VisitorKey)
	}
	if filter.VariantName != nil {
		db = db.Where("variant_name = ?", *filter.VariantName)
	}
	if filter.Converted != nil {
		db = db.Where("converted = ?", *filter.Converted)
	}
	if filter.Included != nil {
		db = db.Where("included = ?", *filter.Included)
	}
	return db
}

// ByFilter retrieves exposures based on filter criteria
func (r *ExperimentExposureRepositoryImpl) ByFilter(ctx context.Context, filter models.ExperimentExposureFilter, orderBy string, limit, offset int) ([]*models.ExperimentExposure, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ExperimentExposure{}), filter)

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

	var rows []*models.ExperimentExposure
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}
