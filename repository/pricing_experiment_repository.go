package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PricingExperimentRepositoryImpl implements PricingExperimentRepository
type PricingExperimentRepositoryImpl struct {
	*BaseRepository[models.PricingExperiment, models.PricingExperimentFilter]
}

// NewPricingExperimentRepository creates a new repository for pricing experiments
func NewPricingExperimentRepository(db *gorm.DB) PricingExperimentRepository {
	return &PricingExperimentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PricingExperiment, models.PricingExperimentFilter](db),
	}
}

// ByUUID retrieves an experiment by its UUID
func (r *PricingExperimentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.PricingExperiment, error) {
	db := r.getDB(ctx)

	var exp models.PricingExperiment
	err := db.Where("uuid = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &exp, nil
}

// ByUUIDForUpdate locks the experiment row for a state transition.
// Callers must run inside WithTransaction.
func (r *PricingExperimentRepositoryImpl) ByUUIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PricingExperiment, error) {
	db := r.getDB(ctx)

	var exp models.PricingExperiment
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &exp, nil
}

// Update persists the full experiment row
func (r *PricingExperimentRepositoryImpl) Update(ctx context.Context, experiment *models.PricingExperiment) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(experiment).Error
	if err != nil {
		return fmt.Errorf("failed to update experiment %d: %w", experiment.ID, err)
	}

	return nil
}

// ListRunning returns all experiments currently in the running state
func (r *PricingExperimentRepositoryImpl) ListRunning(ctx context.Context) ([]*models.PricingExperiment, error) {
	db := r.getDB(ctx)

	var exps []*models.PricingExperiment
	err := db.Where("status = ?", models.ExperimentStatusRunning).Order("id").Find(&exps).Error
	if err != nil {
		return nil, err
	}

	return exps, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *PricingExperimentRepositoryImpl) applyFilter(db *gorm.DB, filter models.PricingExperimentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

// ByFilter retrieves experiments based on filter criteria
func (r *PricingExperimentRepositoryImpl) ByFilter(ctx context.Context, filter models.PricingExperimentFilter, orderBy string, limit, offset int) ([]*models.PricingExperiment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PricingExperiment{}), filter)

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

	var exps []*models.PricingExperiment
	if err := query.Find(&exps).Error; err != nil {
		return nil, err
	}

	return exps, nil
}
