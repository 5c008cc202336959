package dto

// HistorySummaryRequest bounds a reporting window (RFC3339, optional ends)
type HistorySummaryRequest struct {
	From *string `json:"from,omitempty" validate:"omitempty"`
	To   *string `json:"to,omitempty" validate:"omitempty"`
}

// TriggerBreakdownDTO is one trigger's share of the window's adjustments
type TriggerBreakdownDTO struct {
	Trigger    string  `json:"trigger"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// BucketBreakdownDTO is one adjustment-percentage bucket
type BucketBreakdownDTO struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// DailyAveragePriceDTO is one point of the daily mean new_price series
type DailyAveragePriceDTO struct {
	Date         string  `json:"date"`
	AveragePrice float64 `json:"average_price"`
	Count        int64   `json:"count"`
}

// HistorySummaryResponse aggregates the ledger over a window
type HistorySummaryResponse struct {
	Message          string                 `json:"message"`
	From             string                 `json:"from"`
	To               string                 `json:"to"`
	TotalAdjustments int64                  `json:"total_adjustments"`
	ByTrigger        []TriggerBreakdownDTO  `json:"by_trigger"`
	ByBucket         []BucketBreakdownDTO   `json:"by_bucket"`
	DailySeries      []DailyAveragePriceDTO `json:"daily_series"`
}

// ExportRowDTO is one flat export row. Column order is fixed:
// date, unit, site, old price, new price, % change, trigger, auto/manual.
type ExportRowDTO struct {
	Date      string  `json:"date"`
	Unit      string  `json:"unit"`
	Site      string  `json:"site"`
	OldPrice  float64 `json:"old_price"`
	NewPrice  float64 `json:"new_price"`
	ChangePct float64 `json:"change_pct"`
	Trigger   string  `json:"trigger"`
	Mode      string  `json:"mode"`
}

// HistoryExportResponse streams export-ready rows for a window
type HistoryExportResponse struct {
	Message string         `json:"message"`
	Columns []string       `json:"columns"`
	Rows    []ExportRowDTO `json:"rows"`
}
