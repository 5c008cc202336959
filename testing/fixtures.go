// Package testing provides test utilities and database setup for testing the pricing system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestSite creates a storage site with a unique name
func (tf *TestFixtures) CreateTestSite(autoPricing bool) (*models.Site, error) {
	site := &models.Site{
		UUID:        uuid.New(),
		Name:        fmt.Sprintf("Test Site %04d", rand.Intn(10000)),
		City:        "Rotterdam",
		Timezone:    "UTC",
		AutoPricing: autoPricing,
	}

	if err := tf.DB.DB.Create(site).Error; err != nil {
		return nil, fmt.Errorf("failed to create test site: %w", err)
	}

	return site, nil
}

// CreateTestUnit creates a unit on the given site with the given prices.
// The category is derived from the area by the model hook.
func (tf *TestFixtures) CreateTestUnit(siteID uint, areaSqm, basePrice float64, status models.UnitStatus) (*models.Unit, error) {
	unit := &models.Unit{
		UUID:         uuid.New(),
		SiteID:       siteID,
		UnitNumber:   fmt.Sprintf("U-%04d", rand.Intn(10000)),
		AreaSqm:      areaSqm,
		BasePrice:    basePrice,
		CurrentPrice: basePrice,
		Status:       status,
	}

	if err := tf.DB.DB.Create(unit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test unit: %w", err)
	}

	return unit, nil
}

// CreateTestAdjustment records a price change for a unit without touching the unit row
func (tf *TestFixtures) CreateTestAdjustment(unit *models.Unit, oldPrice, newPrice float64, trigger models.AdjustmentTrigger, autoApplied bool) (*models.PriceAdjustment, error) {
	pct := 0.0
	if oldPrice != 0 {
		pct = utils.RoundPrice((newPrice - oldPrice) / oldPrice * 100)
	}

	adjustment := &models.PriceAdjustment{
		UUID:                 uuid.New(),
		UnitID:               unit.ID,
		SiteID:               unit.SiteID,
		OldPrice:             oldPrice,
		NewPrice:             newPrice,
		AdjustmentPercentage: pct,
		Trigger:              trigger,
		TriggerDetails:       models.TriggerDetails{},
		AutoApplied:          autoApplied,
	}

	if err := tf.DB.DB.Create(adjustment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test adjustment: %w", err)
	}

	return adjustment, nil
}

// CreateTestExperiment creates a two-variant experiment in the given status
func (tf *TestFixtures) CreateTestExperiment(siteID *uint, status models.ExperimentStatus) (*models.PricingExperiment, error) {
	experiment := &models.PricingExperiment{
		UUID:   uuid.New(),
		Name:   fmt.Sprintf("Test Experiment %04d", rand.Intn(10000)),
		SiteID: siteID,
		Variants: models.VariantList{
			{Name: "control", Weight: 50, PriceModifier: 0, ModifierType: models.ModifierTypePercentage},
			{Name: "plus_ten", Weight: 50, PriceModifier: 10, ModifierType: models.ModifierTypePercentage},
		},
		TrafficPercentage: 100,
		DurationDays:      14,
		MinSampleSize:     50,
		ConfidenceLevel:   95,
		Status:            status,
	}

	if status != models.ExperimentStatusDraft {
		startedAt := utils.UTCNow().Add(-24 * time.Hour)
		experiment.StartedAt = &startedAt
	}
	if status == models.ExperimentStatusCompleted {
		endedAt := utils.UTCNow()
		experiment.EndedAt = &endedAt
	}

	if err := tf.DB.DB.Create(experiment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test experiment: %w", err)
	}

	return experiment, nil
}

// CreateTestExposure records a visitor assignment for an experiment
func (tf *TestFixtures) CreateTestExposure(experimentID uint, visitorKey, variantName string, converted bool, conversionValue float64) (*models.ExperimentExposure, error) {
	exposure := &models.ExperimentExposure{
		ExperimentID:    experimentID,
		VisitorKey:      visitorKey,
		Included:        true,
		VariantName:     variantName,
		Converted:       converted,
		ConversionValue: conversionValue,
	}

	if converted {
		convertedAt := utils.UTCNow()
		exposure.ConvertedAt = &convertedAt
	}

	if err := tf.DB.DB.Create(exposure).Error; err != nil {
		return nil, fmt.Errorf("failed to create test exposure: %w", err)
	}

	return exposure, nil
}

// CreateTestCompetitorPrice records a collected competitor price for a category
func (tf *TestFixtures) CreateTestCompetitorPrice(category models.UnitCategory, monthlyPrice float64, collectedAt time.Time) (*models.CompetitorPrice, error) {
	price := &models.CompetitorPrice{
		CompetitorName: fmt.Sprintf("Competitor %04d", rand.Intn(10000)),
		Location:       "Rotterdam Zuid",
		DistanceKm:     3.5,
		Category:       category,
		MonthlyPrice:   monthlyPrice,
		CollectedAt:    collectedAt,
		Source:         "manual",
	}

	if err := tf.DB.DB.Create(price).Error; err != nil {
		return nil, fmt.Errorf("failed to create test competitor price: %w", err)
	}

	return price, nil
}
