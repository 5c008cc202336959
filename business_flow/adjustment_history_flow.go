package businessflow

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/models"
	"github.com/storekeep/pricing-core/repository"
	"github.com/storekeep/pricing-core/utils"
)

// defaultReportWindow is the fallback reporting window when neither end is given
const defaultReportWindow = 30 * 24 * time.Hour

// changeBuckets are the fixed adjustment-percentage buckets, in report order
var changeBuckets = []string{"decrease", "0-5%", "5-10%", "10-20%", ">20%"}

// exportColumns is the fixed export column order
var exportColumns = []string{"date", "unit", "site", "old_price", "new_price", "change_pct", "trigger", "mode"}

// AdjustmentHistoryFlow reports over the price adjustment ledger
type AdjustmentHistoryFlow interface {
	Summary(ctx context.Context, req *dto.HistorySummaryRequest) (*dto.HistorySummaryResponse, error)
	Export(ctx context.Context, req *dto.HistorySummaryRequest) (*dto.HistoryExportResponse, error)
}

type AdjustmentHistoryFlowImpl struct {
	adjustmentRepo repository.PriceAdjustmentRepository
}

func NewAdjustmentHistoryFlow(adjustmentRepo repository.PriceAdjustmentRepository) AdjustmentHistoryFlow {
	return &AdjustmentHistoryFlowImpl{adjustmentRepo: adjustmentRepo}
}

// Summary aggregates the ledger over a window: totals per trigger with
// percentage share, adjustment-size buckets, and the daily mean price series
func (f *AdjustmentHistoryFlowImpl) Summary(ctx context.Context, req *dto.HistorySummaryRequest) (*dto.HistorySummaryResponse, error) {
	from, to, err := parseReportWindow(req)
	if err != nil {
		return nil, err
	}

	counts, err := f.adjustmentRepo.CountByTrigger(ctx, from, to)
	if err != nil {
		return nil, NewBusinessError("HISTORY_SUMMARY_FAILED", "Failed to count adjustments by trigger", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	byTrigger := make([]dto.TriggerBreakdownDTO, 0, len(counts))
	for trigger, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(count)/float64(total)*100*100) / 100
		}
		byTrigger = append(byTrigger, dto.TriggerBreakdownDTO{
			Trigger:    trigger.String(),
			Count:      count,
			Percentage: pct,
		})
	}
	sort.Slice(byTrigger, func(i, j int) bool {
		if byTrigger[i].Count != byTrigger[j].Count {
			return byTrigger[i].Count > byTrigger[j].Count
		}
		return byTrigger[i].Trigger < byTrigger[j].Trigger
	})

	byBucket, err := f.bucketBreakdown(ctx, from, to)
	if err != nil {
		return nil, NewBusinessError("HISTORY_SUMMARY_FAILED", "Failed to bucket adjustments", err)
	}

	daily, err := f.adjustmentRepo.DailyAverageNewPrice(ctx, from, to)
	if err != nil {
		return nil, NewBusinessError("HISTORY_SUMMARY_FAILED", "Failed to compute daily series", err)
	}
	series := make([]dto.DailyAveragePriceDTO, 0, len(daily))
	for _, d := range daily {
		series = append(series, dto.DailyAveragePriceDTO{
			Date:         d.Day.Format("2006-01-02"),
			AveragePrice: utils.RoundPrice(d.AveragePrice),
			Count:        d.Count,
		})
	}

	return &dto.HistorySummaryResponse{
		Message:          "Adjustment history summarized",
		From:             from.Format(time.RFC3339),
		To:               to.Format(time.RFC3339),
		TotalAdjustments: total,
		ByTrigger:        byTrigger,
		ByBucket:         byBucket,
		DailySeries:      series,
	}, nil
}

// bucketBreakdown counts ledger entries per adjustment-size bucket.
// Decreases land in one bucket regardless of magnitude; increases are
// bucketed by size.
func (f *AdjustmentHistoryFlowImpl) bucketBreakdown(ctx context.Context, from, to time.Time) ([]dto.BucketBreakdownDTO, error) {
	filter := models.PriceAdjustmentFilter{
		CreatedAfter:  &from,
		CreatedBefore: &to,
	}
	adjustments, err := f.adjustmentRepo.ByFilter(ctx, filter, "created_at ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(changeBuckets))
	for _, a := range adjustments {
		counts[changeFor(a.AdjustmentPercentage)]++
	}

	out := make([]dto.BucketBreakdownDTO, 0, len(changeBuckets))
	for _, bucket := range changeBuckets {
		out = append(out, dto.BucketBreakdownDTO{Bucket: bucket, Count: counts[bucket]})
	}

	return out, nil
}

// changeFor maps an adjustment percentage to its bucket label
func changeFor(pct float64) string {
	switch {
	case pct < 0:
		return changeBuckets[0]
	case pct < 5:
		return changeBuckets[1]
	case pct < 10:
		return changeBuckets[2]
	case pct < 20:
		return changeBuckets[3]
	default:
		return changeBuckets[4]
	}
}

// Export lists the window's ledger entries as flat rows in the fixed column
// order, oldest first
func (f *AdjustmentHistoryFlowImpl) Export(ctx context.Context, req *dto.HistorySummaryRequest) (*dto.HistoryExportResponse, error) {
	from, to, err := parseReportWindow(req)
	if err != nil {
		return nil, err
	}

	adjustments, err := f.adjustmentRepo.ListForExport(ctx, from, to)
	if err != nil {
		return nil, NewBusinessError("HISTORY_EXPORT_FAILED", "Failed to list adjustments", err)
	}

	rows := make([]dto.ExportRowDTO, 0, len(adjustments))
	for _, a := range adjustments {
		mode := "manual"
		if a.AutoApplied {
			mode = "auto"
		}
		rows = append(rows, dto.ExportRowDTO{
			Date:      a.CreatedAt.Format(time.RFC3339),
			Unit:      a.Unit.UnitNumber,
			Site:      a.Site.Name,
			OldPrice:  a.OldPrice,
			NewPrice:  a.NewPrice,
			ChangePct: a.AdjustmentPercentage,
			Trigger:   a.Trigger.String(),
			Mode:      mode,
		})
	}

	return &dto.HistoryExportResponse{
		Message: "Adjustment history exported",
		Columns: exportColumns,
		Rows:    rows,
	}, nil
}

// parseReportWindow parses the optional RFC3339 window ends and applies the
// default lookback
func parseReportWindow(req *dto.HistorySummaryRequest) (time.Time, time.Time, error) {
	var from, to *time.Time
	if req.From != nil {
		t, err := time.Parse(time.RFC3339, *req.From)
		if err != nil {
			return time.Time{}, time.Time{}, NewBusinessError("HISTORY_WINDOW_INVALID", "Invalid 'from' timestamp", ErrInvalidTimestamp)
		}
		from = &t
	}
	if req.To != nil {
		t, err := time.Parse(time.RFC3339, *req.To)
		if err != nil {
			return time.Time{}, time.Time{}, NewBusinessError("HISTORY_WINDOW_INVALID", "Invalid 'to' timestamp", ErrInvalidTimestamp)
		}
		to = &t
	}

	return validateWindow(from, to, defaultReportWindow, utils.UTCNow())
}
