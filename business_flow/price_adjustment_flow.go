package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/app/services"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
	"gorm.io/gorm"
)

// PriceAdjustmentFlow computes and atomically applies price changes for units
// and maintains the append-only adjustment ledger.
type PriceAdjustmentFlow interface {
	ProposeAdjustment(ctx context.Context, req *dto.ProposeAdjustmentRequest) (*dto.ProposeAdjustmentResponse, error)
	ApplyAdjustment(ctx context.Context, req *dto.ApplyAdjustmentRequest) (*dto.ApplyAdjustmentResponse, error)
	BatchUpdatePrices(ctx context.Context, req *dto.BatchUpdateRequest) (*dto.BatchUpdateResponse, error)
	RevertAdjustment(ctx context.Context, req *dto.RevertAdjustmentRequest) (*dto.RevertAdjustmentResponse, error)

	// ApplyTriggered is the model-level entry point used by other flows and the
	// scheduler. It performs the transactional read-modify-write for one unit.
	ApplyTriggered(ctx context.Context, unitUUID uuid.UUID, newPrice float64, trigger models.AdjustmentTrigger, details models.TriggerDetails, autoApplied bool) (*models.PriceAdjustment, error)
}

type PriceAdjustmentFlowImpl struct {
	unitRepo       repository.UnitRepository
	adjustmentRepo repository.PriceAdjustmentRepository
	siteRepo       repository.SiteRepository
	competitorRepo repository.CompetitorPriceRepository
	forecastRepo   repository.DemandForecastRepository
	signalProvider services.PriceSignalProvider
	cfg            config.PricingConfig
	db             *gorm.DB
}

func NewPriceAdjustmentFlow(
	unitRepo repository.UnitRepository,
	adjustmentRepo repository.PriceAdjustmentRepository,
	siteRepo repository.SiteRepository,
	competitorRepo repository.CompetitorPriceRepository,
	forecastRepo repository.DemandForecastRepository,
	signalProvider services.PriceSignalProvider,
	cfg config.PricingConfig,
	db *gorm.DB,
) PriceAdjustmentFlow {
	return &PriceAdjustmentFlowImpl{
		unitRepo:       unitRepo,
		adjustmentRepo: adjustmentRepo,
		siteRepo:       siteRepo,
		competitorRepo: competitorRepo,
		forecastRepo:   forecastRepo,
		signalProvider: signalProvider,
		cfg:            cfg,
		db:             db,
	}
}

// ProposeAdjustment computes a guarded candidate price without applying it
func (f *PriceAdjustmentFlowImpl) ProposeAdjustment(ctx context.Context, req *dto.ProposeAdjustmentRequest) (*dto.ProposeAdjustmentResponse, error) {
	unitUUID, err := uuid.Parse(req.UnitUUID)
	if err != nil {
		return nil, NewBusinessError("UNIT_UUID_INVALID", "Invalid unit UUID", err)
	}

	unit, err := getUnit(ctx, f.unitRepo, unitUUID)
	if err != nil {
		return nil, NewBusinessError("PROPOSE_ADJUSTMENT_FAILED", "Failed to load unit", err)
	}

	trigger := models.AdjustmentTrigger(req.Trigger)
	details, err := detailsFromRequest(trigger, req.Occupancy, req.Demand, req.Seasonality, req.Manual)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_DETAILS_INVALID", "Trigger details do not match the trigger", err)
	}

	candidate, err := ComputeCandidate(unit, trigger, details, f.cfg.MaxAdjustmentPercent)
	if err != nil {
		return nil, NewBusinessError("PROPOSE_ADJUSTMENT_FAILED", "Failed to compute candidate price", err)
	}

	return &dto.ProposeAdjustmentResponse{
		Message:              "Candidate price computed successfully",
		UnitUUID:             unit.UUID.String(),
		CurrentPrice:         unit.CurrentPrice,
		CandidatePrice:       candidate,
		AdjustmentPercentage: changePercent(unit.CurrentPrice, candidate),
		Trigger:              trigger.String(),
	}, nil
}

// ApplyAdjustment applies a price change atomically and records it in the ledger
func (f *PriceAdjustmentFlowImpl) ApplyAdjustment(ctx context.Context, req *dto.ApplyAdjustmentRequest) (*dto.ApplyAdjustmentResponse, error) {
	unitUUID, err := uuid.Parse(req.UnitUUID)
	if err != nil {
		return nil, NewBusinessError("UNIT_UUID_INVALID", "Invalid unit UUID", err)
	}

	trigger := models.AdjustmentTrigger(req.Trigger)
	details, err := detailsFromRequest(trigger, req.Occupancy, req.Demand, req.Seasonality, req.Manual)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_DETAILS_INVALID", "Trigger details do not match the trigger", err)
	}

	adjustment, err := f.ApplyTriggered(ctx, unitUUID, req.NewPrice, trigger, details, req.AutoApplied)
	if err != nil {
		if IsValidationError(err) || IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewBusinessError("APPLY_ADJUSTMENT_FAILED", "Failed to apply adjustment", err)
	}

	return &dto.ApplyAdjustmentResponse{
		Message:    "Price adjustment applied successfully",
		Adjustment: toAdjustmentDTO(adjustment, unitUUID),
	}, nil
}

// ApplyTriggered re-reads the unit's price under a row lock, writes the
// ledger entry against the fresh value and updates the unit, all in one
// transaction. Concurrent triggers for the same unit serialize here instead
// of losing updates.
func (f *PriceAdjustmentFlowImpl) ApplyTriggered(ctx context.Context, unitUUID uuid.UUID, newPrice float64, trigger models.AdjustmentTrigger, details models.TriggerDetails, autoApplied bool) (*models.PriceAdjustment, error) {
	if !trigger.Valid() {
		return nil, ErrInvalidTrigger
	}
	newPrice = utils.RoundPrice(newPrice)
	if newPrice <= 0 {
		return nil, ErrNonPositivePrice
	}

	var adjustment *models.PriceAdjustment

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		unit, err := f.unitRepo.ByUUIDForUpdate(txCtx, unitUUID)
		if err != nil {
			return err
		}
		if unit == nil {
			return ErrUnitNotFound
		}

		adjustment = &models.PriceAdjustment{
			UnitID:               unit.ID,
			SiteID:               unit.SiteID,
			OldPrice:             unit.CurrentPrice,
			NewPrice:             newPrice,
			AdjustmentPercentage: changePercent(unit.CurrentPrice, newPrice),
			Trigger:              trigger,
			TriggerDetails:       details,
			AutoApplied:          autoApplied,
			CreatedAt:            utils.UTCNow(),
		}
		if err := f.adjustmentRepo.Save(txCtx, adjustment); err != nil {
			return err
		}

		return f.unitRepo.UpdateCurrentPrice(txCtx, unit.ID, newPrice)
	})
	if err != nil {
		return nil, err
	}

	auto := "manual"
	if autoApplied {
		auto = "auto"
	}
	adjustmentsAppliedTotal.WithLabelValues(trigger.String(), auto).Inc()

	return adjustment, nil
}

// batchSignals holds the per-site and per-category inputs prefetched for a batch
type batchSignals struct {
	occupancyBySite    map[uint]float64
	demandBySite       map[uint]*models.DemandForecast
	competitorAverages map[models.UnitCategory]competitorAverage
}

type competitorAverage struct {
	average float64
	samples int64
}

// BatchUpdatePrices recomputes prices for every available unit in scope on a
// bounded worker pool. A single unit's failure never aborts the batch.
func (f *PriceAdjustmentFlowImpl) BatchUpdatePrices(ctx context.Context, req *dto.BatchUpdateRequest) (*dto.BatchUpdateResponse, error) {
	var siteUUID *uuid.UUID
	if req.SiteUUID != nil {
		parsed, err := uuid.Parse(*req.SiteUUID)
		if err != nil {
			return nil, NewBusinessError("SITE_UUID_INVALID", "Invalid site UUID", err)
		}
		siteUUID = &parsed
	}

	siteID, err := resolveSiteID(ctx, f.siteRepo, siteUUID)
	if err != nil {
		return nil, NewBusinessError("BATCH_UPDATE_FAILED", "Failed to resolve site", err)
	}

	// All units count as processed; non-available ones are reported as skipped
	units, err := f.unitRepo.ByFilter(ctx, models.UnitFilter{SiteID: siteID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("BATCH_UPDATE_FAILED", "Failed to list units", err)
	}

	signals := f.prefetchSignals(ctx, units)

	workers := f.cfg.BatchWorkers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan *models.Unit)
	results := make(chan batchUnitResult, len(units))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				results <- f.processBatchUnit(ctx, unit, signals, req.AutoApply)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, unit := range units {
			select {
			case jobs <- unit:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	resp := &dto.BatchUpdateResponse{
		Message:   "Batch price update completed",
		Processed: len(units),
	}
	for res := range results {
		switch {
		case res.failure != nil:
			resp.Failed++
			resp.Failures = append(resp.Failures, *res.failure)
		case res.skipped:
			resp.Skipped++
		case res.adjusted:
			resp.Adjusted++
			if res.delta > 0 {
				resp.Increased++
			} else if res.delta < 0 {
				resp.Decreased++
			}
			if res.preview != nil {
				resp.Previews = append(resp.Previews, *res.preview)
			}
		}
	}

	return resp, nil
}

// batchUnitResult is the outcome of one unit in a batch recompute
type batchUnitResult struct {
	preview  *dto.BatchPreviewItem
	failure  *dto.BatchFailureItem
	adjusted bool
	skipped  bool
	delta    float64
}

// processBatchUnit computes the blended candidate for one unit and either
// previews or commits it
func (f *PriceAdjustmentFlowImpl) processBatchUnit(ctx context.Context, unit *models.Unit, signals *batchSignals, autoApply bool) (res batchUnitResult) {
	if unit.Status != models.UnitStatusAvailable {
		res.skipped = true
		return res
	}

	candidate, trigger, details, err := f.blendedCandidate(ctx, unit, signals)
	if err != nil {
		res.failure = &dto.BatchFailureItem{UnitUUID: unit.UUID.String(), Reason: err.Error()}
		return res
	}

	if math.Abs(candidate-unit.CurrentPrice) < 0.005 {
		res.skipped = true
		return res
	}

	res.delta = candidate - unit.CurrentPrice
	res.preview = &dto.BatchPreviewItem{
		UnitUUID:       unit.UUID.String(),
		CurrentPrice:   unit.CurrentPrice,
		CandidatePrice: candidate,
		Trigger:        trigger.String(),
	}

	if !autoApply {
		res.adjusted = true
		return res
	}

	// Commit; a unit that became occupied mid-batch still gets its price
	// updated against the freshly locked row, but a vanished unit is a skip.
	if _, err := f.ApplyTriggered(ctx, unit.UUID, candidate, trigger, details, true); err != nil {
		if IsUnitNotFound(err) {
			res.skipped = true
			res.preview = nil
			res.delta = 0
			return res
		}
		res.failure = &dto.BatchFailureItem{UnitUUID: unit.UUID.String(), Reason: err.Error()}
		res.preview = nil
		res.delta = 0
		return res
	}

	res.adjusted = true
	res.preview = nil
	return res
}

// prefetchSignals loads occupancy, demand and competitor inputs once per batch
func (f *PriceAdjustmentFlowImpl) prefetchSignals(ctx context.Context, units []*models.Unit) *batchSignals {
	signals := &batchSignals{
		occupancyBySite:    make(map[uint]float64),
		demandBySite:       make(map[uint]*models.DemandForecast),
		competitorAverages: make(map[models.UnitCategory]competitorAverage),
	}

	now := utils.UTCNow()
	for _, unit := range units {
		if _, ok := signals.occupancyBySite[unit.SiteID]; !ok {
			rate, err := f.unitRepo.OccupancyRate(ctx, unit.SiteID)
			if err != nil {
				log.Printf("batch: occupancy signal unavailable for site %d: %v", unit.SiteID, err)
			} else {
				signals.occupancyBySite[unit.SiteID] = rate
			}

			forecast, err := f.forecastRepo.LatestScoreForMonth(ctx, unit.SiteID, now.Year(), int(now.Month()))
			if err != nil {
				log.Printf("batch: demand signal unavailable for site %d: %v", unit.SiteID, err)
			} else if forecast != nil {
				signals.demandBySite[unit.SiteID] = forecast
			}
		}

		if _, ok := signals.competitorAverages[unit.Category]; !ok {
			avg, samples, err := f.competitorRepo.AverageMonthlyPrice(ctx, unit.Category, now.Add(-utils.CompetitorPriceMaxAge))
			if err != nil {
				log.Printf("batch: competitor signal unavailable for category %s: %v", unit.Category, err)
				continue
			}
			signals.competitorAverages[unit.Category] = competitorAverage{average: avg, samples: samples}
		}
	}

	return signals
}

// blendedCandidate combines the available signals into one candidate price.
// The trigger recorded in the ledger is the signal that moved the price most.
func (f *PriceAdjustmentFlowImpl) blendedCandidate(ctx context.Context, unit *models.Unit, signals *batchSignals) (float64, models.AdjustmentTrigger, models.TriggerDetails, error) {
	type candidate struct {
		price   float64
		trigger models.AdjustmentTrigger
		details models.TriggerDetails
	}
	var candidates []candidate

	if rate, ok := signals.occupancyBySite[unit.SiteID]; ok {
		details := models.TriggerDetails{Occupancy: &models.OccupancyDetails{
			OccupancyRate: rate,
			TargetLow:     utils.OccupancyTargetLow,
			TargetHigh:    utils.OccupancyTargetHigh,
		}}
		if price, err := ComputeCandidate(unit, models.TriggerOccupancy, details, f.cfg.MaxAdjustmentPercent); err == nil {
			candidates = append(candidates, candidate{price, models.TriggerOccupancy, details})
		}
	}

	if forecast, ok := signals.demandBySite[unit.SiteID]; ok {
		details := models.TriggerDetails{Demand: &models.DemandDetails{
			DemandScore: forecast.DemandScore,
			Month:       forecast.Month,
		}}
		if price, err := ComputeCandidate(unit, models.TriggerDemand, details, f.cfg.MaxAdjustmentPercent); err == nil {
			candidates = append(candidates, candidate{price, models.TriggerDemand, details})
		}
	}

	if avg, ok := signals.competitorAverages[unit.Category]; ok && avg.samples > 0 {
		details := models.TriggerDetails{Competitor: &models.CompetitorDetails{
			CompetitorAverage: utils.RoundPrice(avg.average),
			SampleSize:        int(avg.samples),
		}}
		if price, err := ComputeCandidate(unit, models.TriggerCompetitor, details, f.cfg.MaxAdjustmentPercent); err == nil {
			candidates = append(candidates, candidate{price, models.TriggerCompetitor, details})
		}
	}

	// External signal is best-effort: a timeout or failure degrades to the
	// internal signals instead of failing the unit.
	if f.signalProvider != nil && f.cfg.SignalTimeout > 0 {
		signalCtx, cancel := context.WithTimeout(ctx, f.cfg.SignalTimeout)
		signal, err := f.signalProvider.Suggest(signalCtx, unit)
		cancel()
		if err != nil {
			log.Printf("batch: external signal skipped for unit %s: %v", unit.UUID, err)
		} else if signal.Confidence >= f.cfg.SignalMinConfidence {
			details := models.TriggerDetails{Manual: &models.ManualDetails{
				TargetPrice: signal.SuggestedPrice,
				Reason:      fmt.Sprintf("external signal (%s)", signal.Model),
			}}
			if price, err := ComputeCandidate(unit, models.TriggerManual, details, f.cfg.MaxAdjustmentPercent); err == nil {
				candidates = append(candidates, candidate{price, models.TriggerManual, details})
			}
		}
	}

	if len(candidates) == 0 {
		return 0, "", models.TriggerDetails{}, ErrTriggerDetailsMissing
	}

	var sum float64
	best := candidates[0]
	for _, c := range candidates {
		sum += c.price
		if math.Abs(c.price-unit.CurrentPrice) > math.Abs(best.price-unit.CurrentPrice) {
			best = c
		}
	}

	blended, err := applyGuardrails(unit.CurrentPrice, sum/float64(len(candidates)), f.cfg.MaxAdjustmentPercent)
	if err != nil {
		return 0, "", models.TriggerDetails{}, err
	}

	return blended, best.trigger, best.details, nil
}

// RevertAdjustment restores a unit's price from a recent ledger entry. The
// original row is flagged, never rewritten; the revert itself is a new entry.
func (f *PriceAdjustmentFlowImpl) RevertAdjustment(ctx context.Context, req *dto.RevertAdjustmentRequest) (*dto.RevertAdjustmentResponse, error) {
	adjustmentUUID, err := uuid.Parse(req.AdjustmentUUID)
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_UUID_INVALID", "Invalid adjustment UUID", err)
	}

	original, err := f.adjustmentRepo.ByUUID(ctx, adjustmentUUID)
	if err != nil {
		return nil, NewBusinessError("REVERT_FAILED", "Failed to load adjustment", err)
	}
	if original == nil {
		return nil, ErrAdjustmentNotFound
	}
	if original.Reverted {
		return nil, ErrAlreadyReverted
	}
	if utils.UTCNow().Sub(original.CreatedAt) > utils.RevertWindow {
		return nil, ErrRevertWindowPassed
	}

	unit, err := f.unitRepo.ByID(ctx, original.UnitID)
	if err != nil {
		return nil, NewBusinessError("REVERT_FAILED", "Failed to load unit", err)
	}
	if unit == nil {
		return nil, ErrUnitNotFound
	}

	var revertEntry *models.PriceAdjustment

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		locked, err := f.unitRepo.ByUUIDForUpdate(txCtx, unit.UUID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrUnitNotFound
		}

		// The guarded update fails if another caller reverted concurrently
		if err := f.adjustmentRepo.MarkReverted(txCtx, original.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlreadyReverted
			}
			return err
		}

		revertEntry = &models.PriceAdjustment{
			UnitID:               locked.ID,
			SiteID:               locked.SiteID,
			OldPrice:             locked.CurrentPrice,
			NewPrice:             original.OldPrice,
			AdjustmentPercentage: changePercent(locked.CurrentPrice, original.OldPrice),
			Trigger:              models.TriggerManual,
			TriggerDetails: models.TriggerDetails{Manual: &models.ManualDetails{
				TargetPrice: original.OldPrice,
				Reason:      "revert",
				RevertOf:    &original.UUID,
			}},
			AutoApplied: false,
			CreatedAt:   utils.UTCNow(),
		}
		if err := f.adjustmentRepo.Save(txCtx, revertEntry); err != nil {
			return err
		}

		return f.unitRepo.UpdateCurrentPrice(txCtx, locked.ID, original.OldPrice)
	})
	if err != nil {
		if IsValidationError(err) || IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewBusinessError("REVERT_FAILED", "Failed to revert adjustment", err)
	}

	adjustmentsRevertedTotal.Inc()
	original.Reverted = true

	return &dto.RevertAdjustmentResponse{
		Message:       "Adjustment reverted successfully",
		RestoredPrice: original.OldPrice,
		RevertEntry:   toAdjustmentDTO(revertEntry, unit.UUID),
		OriginalEntry: toAdjustmentDTO(original, unit.UUID),
	}, nil
}

// detailsFromRequest builds the tagged details union and checks it matches the trigger
func detailsFromRequest(trigger models.AdjustmentTrigger, occupancy *dto.OccupancyDetailsDTO, demand *dto.DemandDetailsDTO, seasonality *dto.SeasonalityDetailsDTO, manual *dto.ManualDetailsDTO) (models.TriggerDetails, error) {
	var details models.TriggerDetails

	switch trigger {
	case models.TriggerOccupancy:
		if occupancy == nil {
			return details, ErrTriggerDetailsMissing
		}
		details.Occupancy = &models.OccupancyDetails{
			OccupancyRate: occupancy.OccupancyRate,
			TargetLow:     occupancy.TargetLow,
			TargetHigh:    occupancy.TargetHigh,
		}
	case models.TriggerDemand:
		if demand == nil {
			return details, ErrTriggerDetailsMissing
		}
		details.Demand = &models.DemandDetails{
			DemandScore: demand.DemandScore,
			Month:       demand.Month,
		}
	case models.TriggerSeasonality:
		if seasonality == nil {
			return details, ErrTriggerDetailsMissing
		}
		details.Seasonality = &models.SeasonalityDetails{
			Month:  seasonality.Month,
			Factor: SeasonalFactor(seasonality.Month),
		}
	case models.TriggerManual:
		if manual == nil {
			return details, ErrTriggerDetailsMissing
		}
		details.Manual = &models.ManualDetails{
			TargetPrice: manual.TargetPrice,
			Reason:      manual.Reason,
		}
	default:
		return details, ErrInvalidTrigger
	}

	return details, nil
}

// changePercent computes (new-old)/old*100 rounded to 4 decimals
func changePercent(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	return math.Round((newPrice-oldPrice)/oldPrice*100*10000) / 10000
}

func toAdjustmentDTO(adj *models.PriceAdjustment, unitUUID uuid.UUID) dto.AdjustmentDTO {
	return dto.AdjustmentDTO{
		UUID:                 adj.UUID.String(),
		UnitUUID:             unitUUID.String(),
		OldPrice:             adj.OldPrice,
		NewPrice:             adj.NewPrice,
		AdjustmentPercentage: adj.AdjustmentPercentage,
		Trigger:              adj.Trigger.String(),
		AutoApplied:          adj.AutoApplied,
		Reverted:             adj.Reverted,
		CreatedAt:            adj.CreatedAt.Format(time.RFC3339),
	}
}
