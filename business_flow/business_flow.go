// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
)

const RequestIDKey = "X-Request-ID"

// getUnit loads a unit by UUID or fails with the not-found sentinel
func getUnit(ctx context.Context, repo repository.UnitRepository, unitUUID uuid.UUID) (*models.Unit, error) {
	unit, err := repo.ByUUID(ctx, unitUUID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, ErrUnitNotFound
	}
	return unit, nil
}

// getExperiment loads an experiment by UUID or fails with the not-found sentinel
func getExperiment(ctx context.Context, repo repository.PricingExperimentRepository, expUUID uuid.UUID) (*models.PricingExperiment, error) {
	exp, err := repo.ByUUID(ctx, expUUID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperimentNotFound
	}
	return exp, nil
}

// resolveSiteID maps an optional site UUID to its row ID
func resolveSiteID(ctx context.Context, repo repository.SiteRepository, siteUUID *uuid.UUID) (*uint, error) {
	if siteUUID == nil {
		return nil, nil
	}

	site, err := repo.ByUUID(ctx, *siteUUID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}

	return &site.ID, nil
}

// validateWindow checks a reporting window and fills open ends
func validateWindow(from, to *time.Time, fallback time.Duration, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != nil {
		end = *to
	}

	start := end.Add(-fallback)
	if from != nil {
		start = *from
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, ErrStartDateAfterEndDate
	}

	return start, end, nil
}
