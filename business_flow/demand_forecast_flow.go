package businessflow

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
)

// forecastBoundSpread is the half-width of the projection interval (10%)
const forecastBoundSpread = 0.10

// weekdayDemandIndices is the fixed per-weekday demand pattern, indexed by
// time.Weekday. Weekends see the most move-in traffic.
var weekdayDemandIndices = [7]float64{
	time.Sunday:    1.10,
	time.Monday:    0.90,
	time.Tuesday:   0.85,
	time.Wednesday: 0.85,
	time.Thursday:  0.95,
	time.Friday:    1.10,
	time.Saturday:  1.25,
}

// DemandForecastFlow projects demand scores for sites
type DemandForecastFlow interface {
	ProjectMonthlyDemand(ctx context.Context, req *dto.ProjectDemandRequest) (*dto.ProjectDemandResponse, error)
	WeeklyPattern(ctx context.Context) (*dto.WeeklyPatternResponse, error)
}

type DemandForecastFlowImpl struct {
	forecastRepo repository.DemandForecastRepository
	unitRepo     repository.UnitRepository
	siteRepo     repository.SiteRepository
}

func NewDemandForecastFlow(
	forecastRepo repository.DemandForecastRepository,
	unitRepo repository.UnitRepository,
	siteRepo repository.SiteRepository,
) DemandForecastFlow {
	return &DemandForecastFlowImpl{
		forecastRepo: forecastRepo,
		unitRepo:     unitRepo,
		siteRepo:     siteRepo,
	}
}

// ProjectMonthlyDemand projects a demand score per calendar month over the
// horizon and persists the rows. Projection is deterministic: the same base
// score and horizon always produce the same trajectory.
func (f *DemandForecastFlowImpl) ProjectMonthlyDemand(ctx context.Context, req *dto.ProjectDemandRequest) (*dto.ProjectDemandResponse, error) {
	if req.HorizonMonths < 1 || req.HorizonMonths > 24 {
		return nil, ErrInvalidForecastHorizon
	}
	if req.BaseScore < 0 || req.BaseScore > 100 {
		return nil, ErrInvalidBaseScore
	}

	siteUUID, err := uuid.Parse(req.SiteUUID)
	if err != nil {
		return nil, NewBusinessError("SITE_UUID_INVALID", "Invalid site UUID", err)
	}
	siteID, err := resolveSiteID(ctx, f.siteRepo, &siteUUID)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewBusinessError("DEMAND_FORECAST_FAILED", "Failed to resolve site", err)
	}

	baseScore := req.BaseScore
	if req.UseHistory {
		baseScore, err = f.baseScoreFromOccupancy(ctx, *siteID)
		if err != nil {
			return nil, NewBusinessError("DEMAND_FORECAST_FAILED", "Failed to derive base score", err)
		}
	}

	now := utils.UTCNow()
	months := make([]dto.MonthlyDemandDTO, 0, req.HorizonMonths)
	rows := make([]*models.DemandForecast, 0, req.HorizonMonths)

	cursor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < req.HorizonMonths; i++ {
		cursor = cursor.AddDate(0, 1, 0)

		factor := SeasonalFactor(int(cursor.Month()))
		score := utils.Clamp(baseScore*factor, 0, 100)
		upper := utils.Clamp(score*(1+forecastBoundSpread), 0, 100)
		lower := utils.Clamp(score*(1-forecastBoundSpread), 0, 100)

		months = append(months, dto.MonthlyDemandDTO{
			Year:        cursor.Year(),
			Month:       int(cursor.Month()),
			DemandScore: roundScore(score),
			UpperBound:  roundScore(upper),
			LowerBound:  roundScore(lower),
			Factor:      factor,
		})
		rows = append(rows, &models.DemandForecast{
			SiteID:      *siteID,
			Month:       int(cursor.Month()),
			Year:        cursor.Year(),
			DemandScore: roundScore(score),
			UpperBound:  roundScore(upper),
			LowerBound:  roundScore(lower),
			GeneratedAt: now,
			CreatedAt:   now,
		})
	}

	if err := f.forecastRepo.SaveBatch(ctx, rows); err != nil {
		return nil, NewBusinessError("DEMAND_FORECAST_FAILED", "Failed to persist forecast", err)
	}

	return &dto.ProjectDemandResponse{
		Message:     "Demand forecast generated",
		SiteUUID:    req.SiteUUID,
		BaseScore:   roundScore(baseScore),
		GeneratedAt: now.Format(time.RFC3339),
		Months:      months,
	}, nil
}

// baseScoreFromOccupancy derives a base demand score from the site's current
// occupancy rate, mapped onto the 0 to 100 scale
func (f *DemandForecastFlowImpl) baseScoreFromOccupancy(ctx context.Context, siteID uint) (float64, error) {
	rate, err := f.unitRepo.OccupancyRate(ctx, siteID)
	if err != nil {
		return 0, err
	}
	return utils.Clamp(rate*100, 0, 100), nil
}

// WeeklyPattern returns the fixed per-weekday demand indices with a
// suggested price adjustment proportional to each day's deviation from parity
func (f *DemandForecastFlowImpl) WeeklyPattern(ctx context.Context) (*dto.WeeklyPatternResponse, error) {
	days := make([]dto.WeekdayPatternDTO, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		index := weekdayDemandIndices[wd]
		days = append(days, dto.WeekdayPatternDTO{
			Weekday:     wd.String(),
			DemandIndex: index,
			// a day 25% above parity suggests a 5% bump
			SuggestedAdjustment: math.Round((index-1)*20*100) / 100,
		})
	}

	return &dto.WeeklyPatternResponse{
		Message: "Weekly demand pattern",
		Source:  "static_profile",
		Days:    days,
	}, nil
}

// roundScore rounds a demand score to two decimals
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
