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

// withDB runs the test against a throwaway database, skipping when no
// PostgreSQL server is reachable
func withDB(t *testing.T, testFunc func(*testingutil.TestDB, *testingutil.TestFixtures)) {
	t.Helper()

	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			t.Logf("failed to cleanup test database: %v", cleanupErr)
		}
	}()

	testFunc(testDB, testingutil.NewTestFixtures(testDB))
}

func newAdjustmentFlow(testDB *testingutil.TestDB) businessflow.PriceAdjustmentFlow {
	return businessflow.NewPriceAdjustmentFlow(
		repository.NewUnitRepository(testDB.DB),
		repository.NewPriceAdjustmentRepository(testDB.DB),
		repository.NewSiteRepository(testDB.DB),
		repository.NewCompetitorPriceRepository(testDB.DB),
		repository.NewDemandForecastRepository(testDB.DB),
		nil,
		config.PricingConfig{MaxAdjustmentPercent: 25, BatchWorkers: 4},
		testDB.DB,
	)
}

func ledgerForUnit(t *testing.T, testDB *testingutil.TestDB, unitID uint) []*models.PriceAdjustment {
	t.Helper()

	repo := repository.NewPriceAdjustmentRepository(testDB.DB)
	entries, err := repo.ByFilter(testingutil.CreateTestContext(), models.PriceAdjustmentFilter{UnitID: &unitID}, "id ASC", 0, 0)
	require.NoError(t, err)
	return entries
}

func TestApplyAdjustmentUpdatesUnitAndLedger(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		flow := newAdjustmentFlow(testDB)
		unitRepo := repository.NewUnitRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)
		unit, err := fixtures.CreateTestUnit(site.ID, 10, 100, models.UnitStatusAvailable)
		require.NoError(t, err)

		resp, err := flow.ApplyAdjustment(ctx, &dto.ApplyAdjustmentRequest{
			UnitUUID: unit.UUID.String(),
			NewPrice: 110,
			Trigger:  "manual",
			Manual:   &dto.ManualDetailsDTO{TargetPrice: 110, Reason: "rate review"},
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, resp.Adjustment.OldPrice)
		assert.Equal(t, 110.0, resp.Adjustment.NewPrice)
		assert.Equal(t, "manual", resp.Adjustment.Trigger)
		assert.False(t, resp.Adjustment.AutoApplied)

		reloaded, err := unitRepo.ByUUID(ctx, unit.UUID)
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Equal(t, 110.0, reloaded.CurrentPrice)
		assert.Equal(t, 100.0, reloaded.BasePrice)

		// A second change records the fresh price as the old one
		resp, err = flow.ApplyAdjustment(ctx, &dto.ApplyAdjustmentRequest{
			UnitUUID: unit.UUID.String(),
			NewPrice: 120,
			Trigger:  "manual",
			Manual:   &dto.ManualDetailsDTO{TargetPrice: 120},
		})
		require.NoError(t, err)
		assert.Equal(t, 110.0, resp.Adjustment.OldPrice)

		entries := ledgerForUnit(t, testDB, unit.ID)
		require.Len(t, entries, 2)
		assert.Equal(t, 100.0, entries[0].OldPrice)
		assert.Equal(t, 110.0, entries[0].NewPrice)
		assert.Equal(t, 110.0, entries[1].OldPrice)
		assert.Equal(t, 120.0, entries[1].NewPrice)
	})
}

func TestRevertAdjustmentRestoresPrice(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		flow := newAdjustmentFlow(testDB)
		unitRepo := repository.NewUnitRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)
		unit, err := fixtures.CreateTestUnit(site.ID, 10, 100, models.UnitStatusAvailable)
		require.NoError(t, err)

		applied, err := flow.ApplyAdjustment(ctx, &dto.ApplyAdjustmentRequest{
			UnitUUID: unit.UUID.String(),
			NewPrice: 110,
			Trigger:  "manual",
			Manual:   &dto.ManualDetailsDTO{TargetPrice: 110},
		})
		require.NoError(t, err)

		reverted, err := flow.RevertAdjustment(ctx, &dto.RevertAdjustmentRequest{
			AdjustmentUUID: applied.Adjustment.UUID,
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, reverted.RestoredPrice)
		assert.Equal(t, 110.0, reverted.RevertEntry.OldPrice)
		assert.Equal(t, 100.0, reverted.RevertEntry.NewPrice)
		assert.Equal(t, "manual", reverted.RevertEntry.Trigger)
		assert.True(t, reverted.OriginalEntry.Reverted)

		reloaded, err := unitRepo.ByUUID(ctx, unit.UUID)
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Equal(t, 100.0, reloaded.CurrentPrice)

		// The original row is flagged in place and the revert is a new entry
		entries := ledgerForUnit(t, testDB, unit.ID)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].Reverted)
		assert.False(t, entries[1].Reverted)
		require.NotNil(t, entries[1].TriggerDetails.Manual)
		require.NotNil(t, entries[1].TriggerDetails.Manual.RevertOf)
		assert.Equal(t, entries[0].UUID, *entries[1].TriggerDetails.Manual.RevertOf)

		_, err = flow.RevertAdjustment(ctx, &dto.RevertAdjustmentRequest{
			AdjustmentUUID: applied.Adjustment.UUID,
		})
		require.Error(t, err)
		assert.True(t, businessflow.IsAlreadyReverted(err))
	})
}

func TestBatchUpdatePricesSkipsUnavailableUnits(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		flow := newAdjustmentFlow(testDB)
		unitRepo := repository.NewUnitRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(true)
		require.NoError(t, err)
		unitA, err := fixtures.CreateTestUnit(site.ID, 10, 100, models.UnitStatusAvailable)
		require.NoError(t, err)
		unitB, err := fixtures.CreateTestUnit(site.ID, 10, 200, models.UnitStatusAvailable)
		require.NoError(t, err)
		_, err = fixtures.CreateTestUnit(site.ID, 10, 150, models.UnitStatusOccupied)
		require.NoError(t, err)

		// One occupied unit out of three puts occupancy below the target
		// band, so the candidate for every available unit is a decrease
		siteUUID := site.UUID.String()
		resp, err := flow.BatchUpdatePrices(ctx, &dto.BatchUpdateRequest{SiteUUID: &siteUUID, AutoApply: false})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Processed)
		assert.Equal(t, 2, resp.Adjusted)
		assert.Equal(t, 1, resp.Skipped)
		assert.Equal(t, 0, resp.Failed)
		assert.Equal(t, 0, resp.Increased)
		assert.Equal(t, 2, resp.Decreased)
		require.Len(t, resp.Previews, 2)
		for _, preview := range resp.Previews {
			assert.Less(t, preview.CandidatePrice, preview.CurrentPrice)
			assert.Equal(t, "occupancy", preview.Trigger)
		}

		// Preview mode must not touch stored prices
		for _, unit := range []*models.Unit{unitA, unitB} {
			reloaded, err := unitRepo.ByUUID(ctx, unit.UUID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, unit.CurrentPrice, reloaded.CurrentPrice)
		}
		assert.Empty(t, ledgerForUnit(t, testDB, unitA.ID))

		resp, err = flow.BatchUpdatePrices(ctx, &dto.BatchUpdateRequest{SiteUUID: &siteUUID, AutoApply: true})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Adjusted)
		assert.Equal(t, 1, resp.Skipped)
		assert.Empty(t, resp.Previews)

		reloaded, err := unitRepo.ByUUID(ctx, unitA.UUID)
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Less(t, reloaded.CurrentPrice, 100.0)

		entries := ledgerForUnit(t, testDB, unitA.ID)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].AutoApplied)
		assert.Equal(t, models.TriggerOccupancy, entries[0].Trigger)
	})
}
