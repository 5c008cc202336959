package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/storekeep/pricing-core/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectMonthlyDemandRejectsBadInput(t *testing.T) {
	flow := &DemandForecastFlowImpl{}
	ctx := context.Background()

	_, err := flow.ProjectMonthlyDemand(ctx, &dto.ProjectDemandRequest{
		SiteUUID: "4b85f3d2-9c41-4a7e-8d2f-1f6f1f1a2b3c", BaseScore: 60, HorizonMonths: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidForecastHorizon)

	_, err = flow.ProjectMonthlyDemand(ctx, &dto.ProjectDemandRequest{
		SiteUUID: "4b85f3d2-9c41-4a7e-8d2f-1f6f1f1a2b3c", BaseScore: 60, HorizonMonths: 25,
	})
	assert.ErrorIs(t, err, ErrInvalidForecastHorizon)

	_, err = flow.ProjectMonthlyDemand(ctx, &dto.ProjectDemandRequest{
		SiteUUID: "4b85f3d2-9c41-4a7e-8d2f-1f6f1f1a2b3c", BaseScore: 101, HorizonMonths: 6,
	})
	assert.ErrorIs(t, err, ErrInvalidBaseScore)
}

func TestWeeklyPattern(t *testing.T) {
	flow := &DemandForecastFlowImpl{}

	resp, err := flow.WeeklyPattern(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Days, 7)
	assert.Equal(t, "static_profile", resp.Source)

	byDay := map[string]dto.WeekdayPatternDTO{}
	for _, d := range resp.Days {
		byDay[d.Weekday] = d
	}

	// Saturday is the move-in peak, midweek the trough
	assert.Equal(t, 1.25, byDay["Saturday"].DemandIndex)
	assert.Equal(t, 5.0, byDay["Saturday"].SuggestedAdjustment)
	assert.Equal(t, 0.85, byDay["Wednesday"].DemandIndex)
	assert.Equal(t, -3.0, byDay["Wednesday"].SuggestedAdjustment)

	// Parity days suggest no change
	for _, d := range resp.Days {
		if d.DemandIndex == 1.0 {
			assert.Equal(t, 0.0, d.SuggestedAdjustment)
		}
	}
}

func TestWeekdayDemandIndicesCoverTheWeek(t *testing.T) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		assert.Greater(t, weekdayDemandIndices[wd], 0.0, "weekday %s", wd)
	}
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 78.0, roundScore(60*1.3))
	assert.Equal(t, 85.8, roundScore(78*1.1))
}
