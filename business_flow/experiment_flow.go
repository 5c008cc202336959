package businessflow

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
	"gorm.io/gorm"
)

// assignmentBuckets is the resolution of the deterministic hash space used
// for traffic gating and variant bucketing
const assignmentBuckets = 10000

// ExperimentFlow governs the lifecycle of pricing A/B experiments
type ExperimentFlow interface {
	Create(ctx context.Context, req *dto.CreateExperimentRequest) (*dto.CreateExperimentResponse, error)
	Start(ctx context.Context, experimentUUID uuid.UUID) (*dto.TransitionExperimentResponse, error)
	Pause(ctx context.Context, experimentUUID uuid.UUID) (*dto.TransitionExperimentResponse, error)
	Complete(ctx context.Context, req *dto.CompleteExperimentRequest) (*dto.CompleteExperimentResponse, error)
	Results(ctx context.Context, experimentUUID uuid.UUID) (*dto.ExperimentResultsResponse, error)
	AssignVariant(ctx context.Context, req *dto.AssignVariantRequest) (*dto.AssignVariantResponse, error)
	RecordExposure(ctx context.Context, req *dto.RecordExposureRequest) (*dto.RecordExposureResponse, error)
	RecordConversion(ctx context.Context, req *dto.RecordConversionRequest) (*dto.RecordConversionResponse, error)
}

type ExperimentFlowImpl struct {
	experimentRepo repository.PricingExperimentRepository
	exposureRepo   repository.ExperimentExposureRepository
	unitRepo       repository.UnitRepository
	siteRepo       repository.SiteRepository
	adjustmentFlow PriceAdjustmentFlow
	cfg            config.PricingConfig
	db             *gorm.DB
}

func NewExperimentFlow(
	experimentRepo repository.PricingExperimentRepository,
	exposureRepo repository.ExperimentExposureRepository,
	unitRepo repository.UnitRepository,
	siteRepo repository.SiteRepository,
	adjustmentFlow PriceAdjustmentFlow,
	cfg config.PricingConfig,
	db *gorm.DB,
) ExperimentFlow {
	return &ExperimentFlowImpl{
		experimentRepo: experimentRepo,
		exposureRepo:   exposureRepo,
		unitRepo:       unitRepo,
		siteRepo:       siteRepo,
		adjustmentFlow: adjustmentFlow,
		cfg:            cfg,
		db:             db,
	}
}

// maxAdjustmentPercent is the configured cap for winner rollouts, falling
// back to the default when the config leaves it unset
func (f *ExperimentFlowImpl) maxAdjustmentPercent() float64 {
	if f.cfg.MaxAdjustmentPercent > 0 {
		return f.cfg.MaxAdjustmentPercent
	}
	return utils.DefaultMaxAdjustmentPercent
}

// Create validates variants at creation time so malformed experiments never
// enter draft, then persists the experiment.
func (f *ExperimentFlowImpl) Create(ctx context.Context, req *dto.CreateExperimentRequest) (*dto.CreateExperimentResponse, error) {
	if err := validateExperimentConfig(req); err != nil {
		return nil, NewBusinessError("EXPERIMENT_CONFIG_INVALID", "Experiment configuration is invalid", err)
	}

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
		return nil, NewBusinessError("EXPERIMENT_CREATE_FAILED", "Failed to resolve site", err)
	}

	variants := make(models.VariantList, 0, len(req.Variants))
	for _, v := range req.Variants {
		variants = append(variants, models.Variant{
			Name:          v.Name,
			Weight:        v.Weight,
			PriceModifier: v.PriceModifier,
			ModifierType:  v.ModifierType,
		})
	}

	experiment := &models.PricingExperiment{
		Name:              req.Name,
		SiteID:            siteID,
		Variants:          variants,
		TrafficPercentage: req.TrafficPercentage,
		DurationDays:      req.DurationDays,
		MinSampleSize:     req.MinSampleSize,
		ConfidenceLevel:   req.ConfidenceLevel,
		Status:            models.ExperimentStatusDraft,
		CreatedAt:         utils.UTCNow(),
		UpdatedAt:         utils.UTCNow(),
	}
	if err := f.experimentRepo.Save(ctx, experiment); err != nil {
		return nil, NewBusinessError("EXPERIMENT_CREATE_FAILED", "Failed to save experiment", err)
	}

	return &dto.CreateExperimentResponse{
		Message:    "Experiment created successfully",
		Experiment: toExperimentDTO(experiment, req.SiteUUID),
	}, nil
}

// Start moves a draft or paused experiment to running
func (f *ExperimentFlowImpl) Start(ctx context.Context, experimentUUID uuid.UUID) (*dto.TransitionExperimentResponse, error) {
	return f.transition(ctx, experimentUUID, models.ExperimentStatusRunning,
		models.ExperimentStatusDraft, models.ExperimentStatusPaused)
}

// Pause moves a running experiment to paused
func (f *ExperimentFlowImpl) Pause(ctx context.Context, experimentUUID uuid.UUID) (*dto.TransitionExperimentResponse, error) {
	return f.transition(ctx, experimentUUID, models.ExperimentStatusPaused,
		models.ExperimentStatusRunning)
}

// transition performs a locked state change, rejecting invalid source states
func (f *ExperimentFlowImpl) transition(ctx context.Context, experimentUUID uuid.UUID, target models.ExperimentStatus, validFrom ...models.ExperimentStatus) (*dto.TransitionExperimentResponse, error) {
	var experiment *models.PricingExperiment

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		experiment, err = f.experimentRepo.ByUUIDForUpdate(txCtx, experimentUUID)
		if err != nil {
			return err
		}
		if experiment == nil {
			return ErrExperimentNotFound
		}

		valid := false
		for _, from := range validFrom {
			if experiment.Status == from {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, experiment.Status, target)
		}

		experiment.Status = target
		if target == models.ExperimentStatusRunning && experiment.StartedAt == nil {
			experiment.StartedAt = utils.UTCNowPtr()
		}
		experiment.UpdatedAt = utils.UTCNow()

		return f.experimentRepo.Update(txCtx, experiment)
	})
	if err != nil {
		if IsNotFoundError(err) || IsConflictError(err) {
			return nil, err
		}
		return nil, NewBusinessError("EXPERIMENT_TRANSITION_FAILED", "Failed to change experiment state", err)
	}

	return &dto.TransitionExperimentResponse{
		Message: fmt.Sprintf("Experiment is now %s", experiment.Status),
		UUID:    experiment.UUID.String(),
		Status:  experiment.Status.String(),
	}, nil
}

// assignmentHash hashes a visitor key salted with the experiment UUID into
// [0, assignmentBuckets). The salt keeps a visitor's buckets independent
// across experiments.
func assignmentHash(experimentUUID uuid.UUID, visitorKey, salt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(experimentUUID.String()))
	h.Write([]byte{':'})
	h.Write([]byte(salt))
	h.Write([]byte{':'})
	h.Write([]byte(visitorKey))
	return h.Sum64() % assignmentBuckets
}

// decideAssignment computes the deterministic inclusion and variant decision
// for one visitor. It is free of per-call randomness: the same key always
// yields the same decision for the lifetime of the experiment.
func decideAssignment(experiment *models.PricingExperiment, visitorKey string) (included bool, variantName string) {
	gate := assignmentHash(experiment.UUID, visitorKey, "gate")
	if float64(gate) >= experiment.TrafficPercentage*assignmentBuckets/100 {
		return false, ""
	}

	bucket := float64(assignmentHash(experiment.UUID, visitorKey, "variant"))
	cumulative := 0.0
	for _, v := range experiment.Variants {
		cumulative += v.Weight * assignmentBuckets / 100
		if bucket < cumulative {
			return true, v.Name
		}
	}

	// Weight rounding can leave a sliver at the top of the space
	return true, experiment.Variants[len(experiment.Variants)-1].Name
}

// AssignVariant returns the visitor's stable assignment, recording the
// exposure idempotently. Repeated calls return the same decision.
func (f *ExperimentFlowImpl) AssignVariant(ctx context.Context, req *dto.AssignVariantRequest) (*dto.AssignVariantResponse, error) {
	if req.VisitorKey == "" {
		return nil, ErrVisitorKeyRequired
	}

	experimentUUID, err := uuid.Parse(req.ExperimentUUID)
	if err != nil {
		return nil, NewBusinessError("EXPERIMENT_UUID_INVALID", "Invalid experiment UUID", err)
	}

	experiment, err := getExperiment(ctx, f.experimentRepo, experimentUUID)
	if err != nil {
		return nil, err
	}
	if experiment.Status != models.ExperimentStatusRunning {
		return nil, ErrExperimentNotRunning
	}

	included, variantName := decideAssignment(experiment, req.VisitorKey)

	exposure := &models.ExperimentExposure{
		ExperimentID: experiment.ID,
		VisitorKey:   req.VisitorKey,
		Included:     included,
		VariantName:  variantName,
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
	persisted, err := f.exposureRepo.UpsertExposure(ctx, exposure)
	if err != nil {
		return nil, NewBusinessError("ASSIGN_VARIANT_FAILED", "Failed to record exposure", err)
	}
	experimentExposuresTotal.Inc()

	resp := &dto.AssignVariantResponse{
		Message:  "Variant assigned",
		Included: persisted.Included,
	}
	if persisted.Included {
		resp.VariantName = utils.ToPtr(persisted.VariantName)
	} else {
		resp.Message = "Visitor excluded by traffic gate"
	}

	return resp, nil
}

// RecordExposure records a visitor's exposure. Assignment and exposure are
// the same idempotent upsert keyed by (experiment, visitor), so this runs
// the assignment path and reports what it stored.
func (f *ExperimentFlowImpl) RecordExposure(ctx context.Context, req *dto.RecordExposureRequest) (*dto.RecordExposureResponse, error) {
	assigned, err := f.AssignVariant(ctx, &dto.AssignVariantRequest{
		ExperimentUUID: req.ExperimentUUID,
		VisitorKey:     req.VisitorKey,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.RecordExposureResponse{
		Message:     "Exposure recorded",
		Included:    assigned.Included,
		VariantName: assigned.VariantName,
	}
	if !assigned.Included {
		resp.Message = assigned.Message
	}

	return resp, nil
}

// RecordConversion attributes a booking to a prior exposure. A conversion
// with no exposure, or against a non-running experiment, is ignored rather
// than rejected.
func (f *ExperimentFlowImpl) RecordConversion(ctx context.Context, req *dto.RecordConversionRequest) (*dto.RecordConversionResponse, error) {
	experimentUUID, err := uuid.Parse(req.ExperimentUUID)
	if err != nil {
		return nil, NewBusinessError("EXPERIMENT_UUID_INVALID", "Invalid experiment UUID", err)
	}

	experiment, err := getExperiment(ctx, f.experimentRepo, experimentUUID)
	if err != nil {
		return nil, err
	}
	if experiment.Status != models.ExperimentStatusRunning {
		return &dto.RecordConversionResponse{
			Message:  "Experiment is not running; conversion ignored",
			Recorded: false,
		}, nil
	}

	recorded, err := f.exposureRepo.MarkConverted(ctx, experiment.ID, req.VisitorKey, req.Value, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("RECORD_CONVERSION_FAILED", "Failed to record conversion", err)
	}
	if recorded {
		experimentConversionsTotal.Inc()
	}

	message := "Conversion recorded"
	if !recorded {
		message = "No matching exposure; conversion ignored"
	}

	return &dto.RecordConversionResponse{Message: message, Recorded: recorded}, nil
}

// computeResults aggregates the current per-variant performance
func (f *ExperimentFlowImpl) computeResults(ctx context.Context, experiment *models.PricingExperiment) (*models.ExperimentResults, error) {
	counts, err := f.exposureRepo.CountsByVariant(ctx, experiment.ID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]models.VariantCounts, len(counts))
	for _, c := range counts {
		byName[c.VariantName] = c
	}

	control := experiment.Control()
	var controlRate float64
	if c, ok := byName[control.Name]; ok && c.Exposures > 0 {
		controlRate = float64(c.Conversions) / float64(c.Exposures)
	}

	results := &models.ExperimentResults{ComputedAt: utils.UTCNow()}
	for _, v := range experiment.Variants {
		c := byName[v.Name]
		vr := models.VariantResult{
			Name:        v.Name,
			Exposures:   c.Exposures,
			Conversions: c.Conversions,
			Revenue:     c.Revenue,
		}
		if c.Exposures > 0 {
			vr.ConversionRate = float64(c.Conversions) / float64(c.Exposures)
		}
		if v.Name != control.Name && c.Exposures > 0 && c.Conversions > 0 {
			// Incremental conversions over what control's rate would have produced
			expected := controlRate * float64(c.Exposures)
			incremental := float64(c.Conversions) - expected
			if c.Conversions > 0 {
				vr.RevenueImpact = utils.RoundPrice(incremental * (c.Revenue / float64(c.Conversions)))
			}
		}
		results.Variants = append(results.Variants, vr)
	}

	results.ProgressPercent = experimentProgress(experiment, utils.UTCNow())
	f.determineWinner(experiment, results)

	return results, nil
}

// experimentProgress is min(100, elapsed_days/duration_days*100)
func experimentProgress(experiment *models.PricingExperiment, now time.Time) float64 {
	if experiment.StartedAt == nil || experiment.DurationDays <= 0 {
		return 0
	}
	elapsedDays := now.Sub(*experiment.StartedAt).Hours() / 24
	return math.Min(100, math.Round(elapsedDays/float64(experiment.DurationDays)*100*100)/100)
}

// determineWinner runs the two-proportion significance test between control
// and each treatment. A treatment wins only when its conversion rate is both
// higher and statistically significant at the experiment's confidence level.
// Insufficient samples and non-significant differences are valid outcomes.
func (f *ExperimentFlowImpl) determineWinner(experiment *models.PricingExperiment, results *models.ExperimentResults) {
	for _, vr := range results.Variants {
		if vr.Exposures < int64(experiment.MinSampleSize) {
			results.Outcome = OutcomeInsufficientData
			return
		}
	}

	control := results.Variants[0]
	results.PValues = make(map[string]float64, len(results.Variants)-1)

	var winner *models.VariantResult
	for i := 1; i < len(results.Variants); i++ {
		treatment := results.Variants[i]
		z := twoProportionZ(control.Conversions, control.Exposures, treatment.Conversions, treatment.Exposures)
		results.PValues[treatment.Name] = math.Round(oneSidedPValue(z)*10000) / 10000

		if treatment.ConversionRate > control.ConversionRate &&
			isSignificantImprovement(z, experiment.ConfidenceLevel) {
			if winner == nil || treatment.ConversionRate > winner.ConversionRate {
				winner = &results.Variants[i]
			}
		}
	}

	if winner == nil {
		results.Outcome = OutcomeNoSignificantDifference
		return
	}

	results.Outcome = OutcomeWinner
	results.WinningVariant = utils.ToPtr(winner.Name)
}

// Results reports the current performance of an experiment
func (f *ExperimentFlowImpl) Results(ctx context.Context, experimentUUID uuid.UUID) (*dto.ExperimentResultsResponse, error) {
	experiment, err := getExperiment(ctx, f.experimentRepo, experimentUUID)
	if err != nil {
		return nil, err
	}

	// Completed experiments report the stored snapshot
	results := experiment.Results
	if results == nil {
		results, err = f.computeResults(ctx, experiment)
		if err != nil {
			return nil, NewBusinessError("EXPERIMENT_RESULTS_FAILED", "Failed to compute results", err)
		}
	}

	return &dto.ExperimentResultsResponse{
		Message:         "Experiment results computed",
		UUID:            experiment.UUID.String(),
		Status:          experiment.Status.String(),
		ProgressPercent: results.ProgressPercent,
		Variants:        toVariantResultDTOs(results.Variants),
		Outcome:         results.Outcome,
		WinningVariant:  results.WinningVariant,
		PValues:         results.PValues,
	}, nil
}

// Complete finishes an experiment, persists the results snapshot and
// optionally applies the winning modifier to every available unit in scope.
// Completing an already-completed experiment returns the stored result.
func (f *ExperimentFlowImpl) Complete(ctx context.Context, req *dto.CompleteExperimentRequest) (*dto.CompleteExperimentResponse, error) {
	experimentUUID, err := uuid.Parse(req.ExperimentUUID)
	if err != nil {
		return nil, NewBusinessError("EXPERIMENT_UUID_INVALID", "Invalid experiment UUID", err)
	}

	var experiment *models.PricingExperiment
	var alreadyCompleted bool

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		experiment, err = f.experimentRepo.ByUUIDForUpdate(txCtx, experimentUUID)
		if err != nil {
			return err
		}
		if experiment == nil {
			return ErrExperimentNotFound
		}

		if experiment.Status == models.ExperimentStatusCompleted {
			alreadyCompleted = true
			return nil
		}
		if experiment.Status != models.ExperimentStatusRunning &&
			experiment.Status != models.ExperimentStatusPaused {
			return fmt.Errorf("%w: %s -> completed", ErrInvalidStateTransition, experiment.Status)
		}

		results, err := f.computeResults(txCtx, experiment)
		if err != nil {
			return err
		}

		experiment.Status = models.ExperimentStatusCompleted
		experiment.EndedAt = utils.UTCNowPtr()
		experiment.Results = results
		experiment.WinningVariant = results.WinningVariant
		experiment.UpdatedAt = utils.UTCNow()

		return f.experimentRepo.Update(txCtx, experiment)
	})
	if err != nil {
		if IsNotFoundError(err) || IsConflictError(err) {
			return nil, err
		}
		return nil, NewBusinessError("EXPERIMENT_COMPLETE_FAILED", "Failed to complete experiment", err)
	}

	results := experiment.Results
	resp := &dto.CompleteExperimentResponse{
		Message:        "Experiment completed",
		UUID:           experiment.UUID.String(),
		Status:         experiment.Status.String(),
		Outcome:        results.Outcome,
		WinningVariant: results.WinningVariant,
		Variants:       toVariantResultDTOs(results.Variants),
	}
	if alreadyCompleted {
		resp.Message = "Experiment was already completed"
		return resp, nil
	}

	if req.ApplyWinner && results.WinningVariant != nil {
		resp.UnitsAdjusted = f.applyWinner(ctx, experiment, *results.WinningVariant)
	}

	return resp, nil
}

// applyWinner pushes the winning variant's modifier to every available unit
// in the experiment's scope. Per-unit failures are logged and skipped.
func (f *ExperimentFlowImpl) applyWinner(ctx context.Context, experiment *models.PricingExperiment, winnerName string) int {
	variant := experiment.VariantByName(winnerName)
	if variant == nil {
		return 0
	}

	units, err := f.unitRepo.ListAvailable(ctx, experiment.SiteID)
	if err != nil {
		log.Printf("experiment %s: failed to list units for winner application: %v", experiment.UUID, err)
		return 0
	}

	details := models.TriggerDetails{ABTest: &models.ABTestDetails{
		ExperimentUUID: experiment.UUID,
		VariantName:    variant.Name,
		Modifier:       variant.PriceModifier,
		ModifierType:   variant.ModifierType,
	}}

	adjusted := 0
	for _, unit := range units {
		candidate, err := ComputeCandidate(unit, models.TriggerABTest, details, f.maxAdjustmentPercent())
		if err != nil {
			log.Printf("experiment %s: skipping unit %s: %v", experiment.UUID, unit.UUID, err)
			continue
		}
		if _, err := f.adjustmentFlow.ApplyTriggered(ctx, unit.UUID, candidate, models.TriggerABTest, details, true); err != nil {
			log.Printf("experiment %s: failed to adjust unit %s: %v", experiment.UUID, unit.UUID, err)
			continue
		}
		adjusted++
	}

	return adjusted
}

// validateExperimentConfig enforces the creation-time variant invariants
func validateExperimentConfig(req *dto.CreateExperimentRequest) error {
	if len(req.Variants) < utils.MinVariantsPerExperiment || len(req.Variants) > utils.MaxVariantsPerExperiment {
		return ErrVariantCountOutOfRange
	}
	if req.TrafficPercentage <= 0 || req.TrafficPercentage > 100 {
		return ErrTrafficPercentageInvalid
	}
	if req.DurationDays < 1 {
		return ErrDurationInvalid
	}
	if req.MinSampleSize < 1 {
		return ErrMinSampleSizeInvalid
	}
	switch req.ConfidenceLevel {
	case 90, 95, 99:
	default:
		return ErrConfidenceLevelInvalid
	}

	seen := make(map[string]struct{}, len(req.Variants))
	weightSum := 0.0
	for _, v := range req.Variants {
		if v.Name == "" {
			return ErrVariantNameRequired
		}
		if _, dup := seen[v.Name]; dup {
			return ErrVariantNameRequired
		}
		seen[v.Name] = struct{}{}

		if v.Weight < 0 || v.Weight > 100 {
			return ErrVariantWeightOutOfRange
		}
		if v.PriceModifier < -utils.VariantModifierBound || v.PriceModifier > utils.VariantModifierBound {
			return ErrVariantModifierOutOfRange
		}
		if v.ModifierType != models.ModifierTypePercentage && v.ModifierType != models.ModifierTypeFixed {
			return ErrVariantModifierTypeInvalid
		}
		weightSum += v.Weight
	}

	if math.Abs(weightSum-100) > utils.VariantWeightSumTolerance {
		return ErrVariantWeightSumInvalid
	}

	return nil
}

func toExperimentDTO(experiment *models.PricingExperiment, siteUUID *string) dto.ExperimentDTO {
	variants := make([]dto.VariantDTO, 0, len(experiment.Variants))
	for _, v := range experiment.Variants {
		variants = append(variants, dto.VariantDTO{
			Name:          v.Name,
			Weight:        v.Weight,
			PriceModifier: v.PriceModifier,
			ModifierType:  v.ModifierType,
		})
	}

	out := dto.ExperimentDTO{
		UUID:              experiment.UUID.String(),
		Name:              experiment.Name,
		SiteUUID:          siteUUID,
		Variants:          variants,
		TrafficPercentage: experiment.TrafficPercentage,
		DurationDays:      experiment.DurationDays,
		MinSampleSize:     experiment.MinSampleSize,
		ConfidenceLevel:   experiment.ConfidenceLevel,
		Status:            experiment.Status.String(),
		WinningVariant:    experiment.WinningVariant,
		CreatedAt:         experiment.CreatedAt.Format(time.RFC3339),
	}
	if experiment.StartedAt != nil {
		out.StartedAt = utils.ToPtr(experiment.StartedAt.Format(time.RFC3339))
	}
	if experiment.EndedAt != nil {
		out.EndedAt = utils.ToPtr(experiment.EndedAt.Format(time.RFC3339))
	}

	return out
}

func toVariantResultDTOs(results []models.VariantResult) []dto.VariantResultDTO {
	out := make([]dto.VariantResultDTO, 0, len(results))
	for _, vr := range results {
		out = append(out, dto.VariantResultDTO{
			Name:           vr.Name,
			Exposures:      vr.Exposures,
			Conversions:    vr.Conversions,
			ConversionRate: vr.ConversionRate,
			Revenue:        vr.Revenue,
			RevenueImpact:  vr.RevenueImpact,
		})
	}
	return out
}
