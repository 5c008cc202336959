// Package scheduler runs the periodic auto-pricing and experiment sweeps
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/storekeep/pricing-core/app/dto"
	businessflow "github.com/storekeep/pricing-core/business_flow"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
)

// PricingScheduler periodically recomputes prices for auto-pricing sites and
// completes experiments whose duration has elapsed
type PricingScheduler struct {
	siteRepo       repository.SiteRepository
	experimentRepo repository.PricingExperimentRepository
	adjustmentFlow businessflow.PriceAdjustmentFlow
	experimentFlow businessflow.ExperimentFlow
	cfg            config.SchedulerConfig
	logger         *log.Logger
}

func NewPricingScheduler(
	siteRepo repository.SiteRepository,
	experimentRepo repository.PricingExperimentRepository,
	adjustmentFlow businessflow.PriceAdjustmentFlow,
	experimentFlow businessflow.ExperimentFlow,
	cfg config.SchedulerConfig,
	logger *log.Logger,
) *PricingScheduler {
	if cfg.PricingInterval <= 0 {
		cfg.PricingInterval = 6 * time.Hour
	}
	if cfg.ExperimentInterval <= 0 {
		cfg.ExperimentInterval = 15 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}

	return &PricingScheduler{
		siteRepo:       siteRepo,
		experimentRepo: experimentRepo,
		adjustmentFlow: adjustmentFlow,
		experimentFlow: experimentFlow,
		cfg:            cfg,
		logger:         logger,
	}
}

// sweepTimeout bounds a single sweep so a stuck tick cannot pile up
const sweepTimeout = 10 * time.Minute

// Start launches both sweep loops and returns a cancel function
func (s *PricingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.PricingInterval)
		defer ticker.Stop()

		s.runSweep(ctx, "pricing", s.runPricingSweep)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSweep(ctx, "pricing", s.runPricingSweep)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.cfg.ExperimentInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSweep(ctx, "experiment", s.runExperimentSweep)
			}
		}
	}()

	return cancel
}

// runSweep runs one tick with a bounded deadline. A panicking sweep is logged
// and the loop keeps ticking.
func (s *PricingScheduler) runSweep(ctx context.Context, name string, sweep func(context.Context)) {
	tickCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scheduler: %s sweep panicked: %v", name, r)
		}
	}()

	sweep(tickCtx)
}

// runPricingSweep recomputes and applies prices for every auto-pricing site
func (s *PricingScheduler) runPricingSweep(ctx context.Context) {
	sites, err := s.siteRepo.ListAutoPricing(ctx)
	if err != nil {
		s.logger.Printf("scheduler: list auto-pricing sites failed: %v", err)
		return
	}
	if len(sites) == 0 {
		return
	}
	s.logger.Printf("scheduler: recomputing prices for %d sites", len(sites))

	for _, site := range sites {
		siteUUID := site.UUID.String()
		result, err := s.adjustmentFlow.BatchUpdatePrices(ctx, &dto.BatchUpdateRequest{
			SiteUUID:  &siteUUID,
			AutoApply: true,
		})
		if err != nil {
			s.logger.Printf("scheduler: batch update failed for site %s: %v", siteUUID, err)
			continue
		}
		s.logger.Printf("scheduler: site %s processed=%d adjusted=%d skipped=%d failed=%d",
			siteUUID, result.Processed, result.Adjusted, result.Skipped, result.Failed)
	}
}

// runExperimentSweep completes running experiments whose duration has elapsed
func (s *PricingScheduler) runExperimentSweep(ctx context.Context) {
	running, err := s.experimentRepo.ListRunning(ctx)
	if err != nil {
		s.logger.Printf("scheduler: list running experiments failed: %v", err)
		return
	}

	now := utils.UTCNow()
	for _, exp := range running {
		if exp.StartedAt == nil {
			continue
		}
		if now.Sub(*exp.StartedAt) < time.Duration(exp.DurationDays)*24*time.Hour {
			continue
		}

		result, err := s.experimentFlow.Complete(ctx, &dto.CompleteExperimentRequest{
			ExperimentUUID: exp.UUID.String(),
			ApplyWinner:    s.cfg.ApplyWinnerOnExpiry,
		})
		if err != nil {
			s.logger.Printf("scheduler: complete experiment %s failed: %v", exp.UUID, err)
			continue
		}
		s.logger.Printf("scheduler: experiment %s completed outcome=%s units_adjusted=%d",
			exp.UUID, result.Outcome, result.UnitsAdjusted)
	}
}
