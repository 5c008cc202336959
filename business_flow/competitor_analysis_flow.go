package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
)

// Market position labels, ordered from most to least expensive
const (
	MarketPositionPremium = "premium"
	MarketPositionAbove   = "above_market"
	MarketPositionAt      = "at_market"
	MarketPositionBelow   = "below_market"
	MarketPositionBudget  = "budget"
)

// Price index recommendations
const (
	RecommendationIncrease = "increase"
	RecommendationDecrease = "decrease"
	RecommendationHold     = "hold"
)

// CompetitorAnalysisFlow compares our rates against observed competitor rates
type CompetitorAnalysisFlow interface {
	SubmitCompetitorPrice(ctx context.Context, req *dto.SubmitCompetitorPriceRequest) (*dto.SubmitCompetitorPriceResponse, error)
	AnalyzeMarket(ctx context.Context, category models.UnitCategory, siteUUID *uuid.UUID) (*dto.MarketAnalysisResponse, error)
	PriceIndex(ctx context.Context, category models.UnitCategory, siteUUID *uuid.UUID) (*dto.PriceIndexResponse, error)
}

type CompetitorAnalysisFlowImpl struct {
	competitorRepo repository.CompetitorPriceRepository
	unitRepo       repository.UnitRepository
	siteRepo       repository.SiteRepository
	rc             *redis.Client
	cacheConfig    *config.CacheConfig
}

func NewCompetitorAnalysisFlow(
	competitorRepo repository.CompetitorPriceRepository,
	unitRepo repository.UnitRepository,
	siteRepo repository.SiteRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) CompetitorAnalysisFlow {
	return &CompetitorAnalysisFlowImpl{
		competitorRepo: competitorRepo,
		unitRepo:       unitRepo,
		siteRepo:       siteRepo,
		rc:             rc,
		cacheConfig:    cacheConfig,
	}
}

// SubmitCompetitorPrice records one manually entered competitor observation
// and invalidates the cached analysis for its category
func (s *CompetitorAnalysisFlowImpl) SubmitCompetitorPrice(ctx context.Context, req *dto.SubmitCompetitorPriceRequest) (*dto.SubmitCompetitorPriceResponse, error) {
	category := models.UnitCategory(req.Category)
	if !category.Valid() {
		return nil, NewBusinessError("COMPETITOR_CATEGORY_INVALID", "Invalid unit category", fmt.Errorf("category %q", req.Category))
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}

	price := &models.CompetitorPrice{
		CompetitorName: req.CompetitorName,
		Location:       req.Location,
		DistanceKm:     req.DistanceKm,
		Category:       category,
		MonthlyPrice:   utils.RoundPrice(req.MonthlyPrice),
		WeeklyPrice:    req.WeeklyPrice,
		CollectedAt:    utils.UTCNow(),
		Source:         source,
		CreatedAt:      utils.UTCNow(),
	}
	if err := s.competitorRepo.Save(ctx, price); err != nil {
		return nil, NewBusinessError("COMPETITOR_PRICE_SAVE_FAILED", "Failed to save competitor price", err)
	}

	s.invalidateAnalysis(ctx, category)

	return &dto.SubmitCompetitorPriceResponse{Message: "Competitor price recorded"}, nil
}

// AnalyzeMarket positions our average rate for a category against the
// competitor average over the freshness window. Results are cached; any
// cache failure falls through to the database.
func (s *CompetitorAnalysisFlowImpl) AnalyzeMarket(ctx context.Context, category models.UnitCategory, siteUUID *uuid.UUID) (*dto.MarketAnalysisResponse, error) {
	cacheKey := s.analysisCacheKey(category, siteUUID)
	if s.rc != nil {
		if bs, err := s.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var out dto.MarketAnalysisResponse
			if err := json.Unmarshal(bs, &out); err == nil {
				out.Message = "Market analysis retrieved from cache"
				return &out, nil
			}
		}
	}

	siteID, err := resolveSiteID(ctx, s.siteRepo, siteUUID)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewBusinessError("MARKET_ANALYSIS_FAILED", "Failed to resolve site", err)
	}

	ourAverage, ourSamples, err := s.unitRepo.AverageCurrentPrice(ctx, category, siteID)
	if err != nil {
		return nil, NewBusinessError("MARKET_ANALYSIS_FAILED", "Failed to aggregate unit prices", err)
	}
	if ourSamples == 0 {
		return nil, ErrNoUnitsInCategory
	}

	since := utils.UTCNow().Add(-utils.CompetitorPriceMaxAge)
	competitorAverage, competitorSamples, err := s.competitorRepo.AverageMonthlyPrice(ctx, category, since)
	if err != nil {
		return nil, NewBusinessError("MARKET_ANALYSIS_FAILED", "Failed to aggregate competitor prices", err)
	}
	if competitorSamples == 0 {
		return nil, ErrNoCompetitorData
	}

	differencePct := (ourAverage - competitorAverage) / competitorAverage * 100

	out := &dto.MarketAnalysisResponse{
		Message:            "Market analysis computed",
		Category:           category.String(),
		OurAverage:         utils.RoundPrice(ourAverage),
		OurSampleSize:      ourSamples,
		CompetitorAverage:  utils.RoundPrice(competitorAverage),
		CompetitorSamples:  competitorSamples,
		PriceDifferencePct: math.Round(differencePct*100) / 100,
		MarketPosition:     marketPosition(differencePct),
	}

	if s.rc != nil {
		if bs, err := json.Marshal(out); err == nil {
			_ = s.rc.Set(ctx, cacheKey, bs, s.cacheConfig.DefaultTTL).Err()
		}
	}

	return out, nil
}

// PriceIndex reports our price as a percentage of the competitor average and
// a coarse recommendation. A suggested increase moves halfway toward parity.
func (s *CompetitorAnalysisFlowImpl) PriceIndex(ctx context.Context, category models.UnitCategory, siteUUID *uuid.UUID) (*dto.PriceIndexResponse, error) {
	analysis, err := s.AnalyzeMarket(ctx, category, siteUUID)
	if err != nil {
		return nil, err
	}

	index := analysis.OurAverage / analysis.CompetitorAverage * 100
	recommendation, suggestedChangePct := indexRecommendation(index)

	return &dto.PriceIndexResponse{
		Message:            "Price index computed",
		Category:           category.String(),
		PriceIndex:         math.Round(index*100) / 100,
		Recommendation:     recommendation,
		SuggestedChangePct: math.Round(suggestedChangePct*100) / 100,
	}, nil
}

// indexRecommendation maps a price index to a recommendation and a suggested
// change sized as half the gap to parity
func indexRecommendation(index float64) (string, float64) {
	switch {
	case index < utils.PriceIndexIncreaseBelow:
		return RecommendationIncrease, (100 - index) / 2
	case index > utils.PriceIndexDecreaseAbove:
		return RecommendationDecrease, (100 - index) / 2
	default:
		return RecommendationHold, 0
	}
}

// marketPosition buckets the percent difference against the competitor average
func marketPosition(differencePct float64) string {
	switch {
	case differencePct > utils.MarketPremiumThreshold:
		return MarketPositionPremium
	case differencePct > utils.MarketAboveThreshold:
		return MarketPositionAbove
	case differencePct > utils.MarketBelowThreshold:
		return MarketPositionAt
	case differencePct > utils.MarketBudgetThreshold:
		return MarketPositionBelow
	default:
		return MarketPositionBudget
	}
}

func (s *CompetitorAnalysisFlowImpl) analysisCacheKey(category models.UnitCategory, siteUUID *uuid.UUID) string {
	scope := "all"
	if siteUUID != nil {
		scope = siteUUID.String()
	}
	prefix := "pricing"
	if s.cacheConfig != nil && s.cacheConfig.RedisPrefix != "" {
		prefix = s.cacheConfig.RedisPrefix
	}
	return fmt.Sprintf("%s:market_analysis:%s:%s", prefix, category, scope)
}

// invalidateAnalysis drops cached analyses for a category, best effort
func (s *CompetitorAnalysisFlowImpl) invalidateAnalysis(ctx context.Context, category models.UnitCategory) {
	if s.rc == nil {
		return
	}

	prefix := "pricing"
	if s.cacheConfig != nil && s.cacheConfig.RedisPrefix != "" {
		prefix = s.cacheConfig.RedisPrefix
	}
	pattern := fmt.Sprintf("%s:market_analysis:%s:*", prefix, category)

	iter := s.rc.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = s.rc.Del(ctx, iter.Val()).Err()
	}
}
