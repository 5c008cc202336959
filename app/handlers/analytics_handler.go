package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	businessflow "github.com/storekeep/pricing-core/business_flow"
	"github.com/storekeep/pricing-core/models"
)

// AnalyticsHandlerInterface defines the contract for market and reporting handlers
type AnalyticsHandlerInterface interface {
	SubmitCompetitorPrice(c fiber.Ctx) error
	AnalyzeMarket(c fiber.Ctx) error
	PriceIndex(c fiber.Ctx) error
	ProjectDemand(c fiber.Ctx) error
	WeeklyPattern(c fiber.Ctx) error
	HistorySummary(c fiber.Ctx) error
	HistoryExport(c fiber.Ctx) error
}

// AnalyticsHandler handles market analysis, forecasting and reporting requests
type AnalyticsHandler struct {
	competitorFlow businessflow.CompetitorAnalysisFlow
	forecastFlow   businessflow.DemandForecastFlow
	historyFlow    businessflow.AdjustmentHistoryFlow
	validator      *validator.Validate
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	competitorFlow businessflow.CompetitorAnalysisFlow,
	forecastFlow businessflow.DemandForecastFlow,
	historyFlow businessflow.AdjustmentHistoryFlow,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		competitorFlow: competitorFlow,
		forecastFlow:   forecastFlow,
		historyFlow:    historyFlow,
		validator:      validator.New(),
	}
}

func (h *AnalyticsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AnalyticsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SubmitCompetitorPrice records one observed competitor rate
func (h *AnalyticsHandler) SubmitCompetitorPrice(c fiber.Ctx) error {
	var req dto.SubmitCompetitorPriceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.competitorFlow.SubmitCompetitorPrice(createRequestContext(c, "/api/v1/market/competitor-prices"), &req)
	if err != nil {
		return h.analyticsError(c, err, "Failed to record competitor price", "COMPETITOR_PRICE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// AnalyzeMarket positions our prices against competitors in a category
func (h *AnalyticsHandler) AnalyzeMarket(c fiber.Ctx) error {
	category, siteUUID, err := h.marketScope(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_REQUEST", nil)
	}

	result, err := h.competitorFlow.AnalyzeMarket(createRequestContext(c, "/api/v1/market/analysis"), category, siteUUID)
	if err != nil {
		return h.analyticsError(c, err, "Failed to analyze market", "MARKET_ANALYSIS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// PriceIndex reports the price index and its recommendation
func (h *AnalyticsHandler) PriceIndex(c fiber.Ctx) error {
	category, siteUUID, err := h.marketScope(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_REQUEST", nil)
	}

	result, err := h.competitorFlow.PriceIndex(createRequestContext(c, "/api/v1/market/price-index"), category, siteUUID)
	if err != nil {
		return h.analyticsError(c, err, "Failed to compute price index", "PRICE_INDEX_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ProjectDemand projects a site's monthly demand trajectory
func (h *AnalyticsHandler) ProjectDemand(c fiber.Ctx) error {
	var req dto.ProjectDemandRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.forecastFlow.ProjectMonthlyDemand(createRequestContext(c, "/api/v1/forecast/demand"), &req)
	if err != nil {
		return h.analyticsError(c, err, "Failed to project demand", "DEMAND_FORECAST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// WeeklyPattern returns the per-weekday demand indices
func (h *AnalyticsHandler) WeeklyPattern(c fiber.Ctx) error {
	result, err := h.forecastFlow.WeeklyPattern(createRequestContext(c, "/api/v1/forecast/weekly-pattern"))
	if err != nil {
		return h.analyticsError(c, err, "Failed to load weekly pattern", "WEEKLY_PATTERN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// HistorySummary aggregates the adjustment ledger over a window
func (h *AnalyticsHandler) HistorySummary(c fiber.Ctx) error {
	req := h.historyWindow(c)

	result, err := h.historyFlow.Summary(createRequestContext(c, "/api/v1/history/summary"), req)
	if err != nil {
		return h.analyticsError(c, err, "Failed to summarize history", "HISTORY_SUMMARY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// HistoryExport lists export-ready ledger rows for a window
func (h *AnalyticsHandler) HistoryExport(c fiber.Ctx) error {
	req := h.historyWindow(c)

	result, err := h.historyFlow.Export(createRequestContext(c, "/api/v1/history/export"), req)
	if err != nil {
		return h.analyticsError(c, err, "Failed to export history", "HISTORY_EXPORT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// marketScope parses the category and optional site UUID query parameters
func (h *AnalyticsHandler) marketScope(c fiber.Ctx) (models.UnitCategory, *uuid.UUID, error) {
	category := models.UnitCategory(c.Query("category"))
	if !category.Valid() {
		return "", nil, businessflow.NewBusinessError("INVALID_CATEGORY", "category query parameter must be a valid unit category", nil)
	}

	var siteUUID *uuid.UUID
	if raw := c.Query("site_uuid"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return "", nil, businessflow.NewBusinessError("INVALID_SITE_UUID", "site_uuid query parameter must be a valid UUID", err)
		}
		siteUUID = &parsed
	}

	return category, siteUUID, nil
}

// historyWindow parses the optional from/to query parameters
func (h *AnalyticsHandler) historyWindow(c fiber.Ctx) *dto.HistorySummaryRequest {
	req := &dto.HistorySummaryRequest{}
	if raw := c.Query("from"); raw != "" {
		req.From = &raw
	}
	if raw := c.Query("to"); raw != "" {
		req.To = &raw
	}
	return req
}

// analyticsError maps analysis business errors onto HTTP statuses
func (h *AnalyticsHandler) analyticsError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsSiteNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Site not found", "SITE_NOT_FOUND", nil)
	}
	if businessflow.IsNoCompetitorData(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "No recent competitor prices in category", "NO_COMPETITOR_DATA", nil)
	}
	if businessflow.IsNoUnitsInCategory(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "No available units in category", "NO_UNITS_IN_CATEGORY", nil)
	}
	if businessflow.IsValidationError(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
