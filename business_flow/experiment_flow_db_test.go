package businessflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/pricing-core/app/dto"
	businessflow "github.com/storekeep/pricing-core/business_flow"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	testingutil "github.com/storekeep/pricing-core/testing"
)

func newExperimentFlow(testDB *testingutil.TestDB) businessflow.ExperimentFlow {
	return businessflow.NewExperimentFlow(
		repository.NewPricingExperimentRepository(testDB.DB),
		repository.NewExperimentExposureRepository(testDB.DB),
		repository.NewUnitRepository(testDB.DB),
		repository.NewSiteRepository(testDB.DB),
		newAdjustmentFlow(testDB),
		config.PricingConfig{MaxAdjustmentPercent: 25, BatchWorkers: 4},
		testDB.DB,
	)
}

func TestRecordExposureMatchesAssignment(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		flow := newExperimentFlow(testDB)
		exposureRepo := repository.NewExperimentExposureRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)
		experiment, err := fixtures.CreateTestExperiment(&site.ID, models.ExperimentStatusRunning)
		require.NoError(t, err)

		recorded, err := flow.RecordExposure(ctx, &dto.RecordExposureRequest{
			ExperimentUUID: experiment.UUID.String(),
			VisitorKey:     "visitor-1",
		})
		require.NoError(t, err)

		// Exposure recording and assignment share the same upsert, so the
		// reported variant must match a subsequent assignment call
		assigned, err := flow.AssignVariant(ctx, &dto.AssignVariantRequest{
			ExperimentUUID: experiment.UUID.String(),
			VisitorKey:     "visitor-1",
		})
		require.NoError(t, err)
		assert.Equal(t, assigned.Included, recorded.Included)
		assert.Equal(t, assigned.VariantName, recorded.VariantName)

		// Repeated exposures for the same visitor stay a single row
		again, err := flow.RecordExposure(ctx, &dto.RecordExposureRequest{
			ExperimentUUID: experiment.UUID.String(),
			VisitorKey:     "visitor-1",
		})
		require.NoError(t, err)
		assert.Equal(t, recorded.Included, again.Included)
		assert.Equal(t, recorded.VariantName, again.VariantName)

		visitorKey := "visitor-1"
		rows, err := exposureRepo.ByFilter(ctx, models.ExperimentExposureFilter{
			ExperimentID: &experiment.ID,
			VisitorKey:   &visitorKey,
		}, "id ASC", 0, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestRecordExposureRequiresRunningExperiment(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		flow := newExperimentFlow(testDB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)
		experiment, err := fixtures.CreateTestExperiment(&site.ID, models.ExperimentStatusDraft)
		require.NoError(t, err)

		_, err = flow.RecordExposure(ctx, &dto.RecordExposureRequest{
			ExperimentUUID: experiment.UUID.String(),
			VisitorKey:     "visitor-1",
		})
		require.Error(t, err)
		assert.True(t, businessflow.IsExperimentNotRunning(err))
	})
}
