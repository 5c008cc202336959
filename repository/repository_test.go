package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	testingutil "github.com/storekeep/pricing-core/testing"
	"github.com/storekeep/pricing-core/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestUnitRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		repo := repository.NewUnitRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)

		available, err := fixtures.CreateTestUnit(site.ID, 8, 100, models.UnitStatusAvailable)
		require.NoError(t, err)
		_, err = fixtures.CreateTestUnit(site.ID, 8, 120, models.UnitStatusOccupied)
		require.NoError(t, err)
		_, err = fixtures.CreateTestUnit(site.ID, 25, 300, models.UnitStatusMaintenance)
		require.NoError(t, err)

		t.Run("ByUUID", func(t *testing.T) {
			unit, err := repo.ByUUID(ctx, available.UUID)
			require.NoError(t, err)
			require.NotNil(t, unit)
			assert.Equal(t, available.ID, unit.ID)
			assert.Equal(t, models.UnitCategoryMedium, unit.Category)
		})

		t.Run("ByUUIDNotFound", func(t *testing.T) {
			unit, err := repo.ByUUID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, unit)
		})

		t.Run("ListAvailable", func(t *testing.T) {
			units, err := repo.ListAvailable(ctx, &site.ID)
			require.NoError(t, err)
			require.Len(t, units, 1)
			assert.Equal(t, available.ID, units[0].ID)
		})

		t.Run("UpdateCurrentPrice", func(t *testing.T) {
			require.NoError(t, repo.UpdateCurrentPrice(ctx, available.ID, 112.5))

			unit, err := repo.ByUUID(ctx, available.UUID)
			require.NoError(t, err)
			assert.Equal(t, 112.5, unit.CurrentPrice)
			// Base price is untouched by price moves
			assert.Equal(t, 100.0, unit.BasePrice)
		})

		t.Run("AverageCurrentPrice", func(t *testing.T) {
			// Only the available medium unit participates
			avg, count, err := repo.AverageCurrentPrice(ctx, models.UnitCategoryMedium, &site.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
			assert.Equal(t, 112.5, avg)

			_, count, err = repo.AverageCurrentPrice(ctx, models.UnitCategoryXS, &site.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})

		t.Run("OccupancyRate", func(t *testing.T) {
			rate, err := repo.OccupancyRate(ctx, site.ID)
			require.NoError(t, err)
			// 1 occupied of 2 rentable units; maintenance is excluded
			assert.InDelta(t, 0.5, rate, 0.001)
		})
	})
}

func TestPriceAdjustmentRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		repo := repository.NewPriceAdjustmentRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		site, err := fixtures.CreateTestSite(false)
		require.NoError(t, err)
		unit, err := fixtures.CreateTestUnit(site.ID, 8, 100, models.UnitStatusAvailable)
		require.NoError(t, err)

		first, err := fixtures.CreateTestAdjustment(unit, 100, 110, models.TriggerOccupancy, true)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAdjustment(unit, 110, 104.5, models.TriggerManual, false)
		require.NoError(t, err)

		from := utils.UTCNow().Add(-time.Hour)
		to := utils.UTCNow().Add(time.Hour)

		t.Run("ByUUID", func(t *testing.T) {
			adjustment, err := repo.ByUUID(ctx, first.UUID)
			require.NoError(t, err)
			require.NotNil(t, adjustment)
			assert.Equal(t, 110.0, adjustment.NewPrice)
			assert.False(t, adjustment.Reverted)
		})

		t.Run("MarkReverted", func(t *testing.T) {
			require.NoError(t, repo.MarkReverted(ctx, first.ID))

			adjustment, err := repo.ByUUID(ctx, first.UUID)
			require.NoError(t, err)
			assert.True(t, adjustment.Reverted)
		})

		t.Run("CountByTrigger", func(t *testing.T) {
			counts, err := repo.CountByTrigger(ctx, from, to)
			require.NoError(t, err)
			assert.Equal(t, int64(1), counts[models.TriggerOccupancy])
			assert.Equal(t, int64(1), counts[models.TriggerManual])
		})

		t.Run("DailyAverageNewPrice", func(t *testing.T) {
			series, err := repo.DailyAverageNewPrice(ctx, from, to)
			require.NoError(t, err)
			require.Len(t, series, 1)
			assert.Equal(t, int64(2), series[0].Count)
			assert.InDelta(t, 107.25, series[0].AveragePrice, 0.001)
		})

		t.Run("ListForExport", func(t *testing.T) {
			rows, err := repo.ListForExport(ctx, from, to)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			// Oldest first
			assert.Equal(t, first.UUID, rows[0].UUID)
		})
	})
}

func TestExperimentExposureRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		repo := repository.NewExperimentExposureRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		experiment, err := fixtures.CreateTestExperiment(nil, models.ExperimentStatusRunning)
		require.NoError(t, err)

		t.Run("UpsertExposureIsIdempotent", func(t *testing.T) {
			first, err := repo.UpsertExposure(ctx, &models.ExperimentExposure{
				ExperimentID: experiment.ID,
				VisitorKey:   "visitor-1",
				Included:     true,
				VariantName:  "control",
			})
			require.NoError(t, err)

			// A conflicting insert returns the stored row unchanged
			again, err := repo.UpsertExposure(ctx, &models.ExperimentExposure{
				ExperimentID: experiment.ID,
				VisitorKey:   "visitor-1",
				Included:     true,
				VariantName:  "plus_ten",
			})
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)
			assert.Equal(t, "control", again.VariantName)
		})

		t.Run("MarkConverted", func(t *testing.T) {
			converted, err := repo.MarkConverted(ctx, experiment.ID, "visitor-1", 99.0, utils.UTCNow())
			require.NoError(t, err)
			assert.True(t, converted)

			// Unknown visitors are reported, not invented
			converted, err = repo.MarkConverted(ctx, experiment.ID, "visitor-unknown", 99.0, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, converted)
		})

		t.Run("CountsByVariant", func(t *testing.T) {
			_, err := fixtures.CreateTestExposure(experiment.ID, "visitor-2", "plus_ten", false, 0)
			require.NoError(t, err)

			counts, err := repo.CountsByVariant(ctx, experiment.ID)
			require.NoError(t, err)
			require.Len(t, counts, 2)

			byName := map[string]models.VariantCounts{}
			for _, c := range counts {
				byName[c.VariantName] = c
			}
			assert.Equal(t, int64(1), byName["control"].Exposures)
			assert.Equal(t, int64(1), byName["control"].Conversions)
			assert.InDelta(t, 99.0, byName["control"].Revenue, 0.001)
			assert.Equal(t, int64(1), byName["plus_ten"].Exposures)
			assert.Equal(t, int64(0), byName["plus_ten"].Conversions)
		})
	})
}

func TestCompetitorPriceRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures) {
		repo := repository.NewCompetitorPriceRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		now := utils.UTCNow()
		_, err := fixtures.CreateTestCompetitorPrice(models.UnitCategoryMedium, 90, now.Add(-24*time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestCompetitorPrice(models.UnitCategoryMedium, 110, now.Add(-48*time.Hour))
		require.NoError(t, err)
		// Stale observation outside the freshness window
		_, err = fixtures.CreateTestCompetitorPrice(models.UnitCategoryMedium, 500, now.Add(-60*24*time.Hour))
		require.NoError(t, err)

		avg, count, err := repo.AverageMonthlyPrice(ctx, models.UnitCategoryMedium, now.Add(-utils.CompetitorPriceMaxAge))
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.InDelta(t, 100.0, avg, 0.001)

		_, count, err = repo.AverageMonthlyPrice(ctx, models.UnitCategoryXL, now.Add(-utils.CompetitorPriceMaxAge))
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
