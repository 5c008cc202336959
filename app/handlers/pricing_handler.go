package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/storekeep/pricing-core/app/dto"
	businessflow "github.com/storekeep/pricing-core/business_flow"
)

// PricingHandlerInterface defines the contract for price adjustment handlers
type PricingHandlerInterface interface {
	ProposeAdjustment(c fiber.Ctx) error
	ApplyAdjustment(c fiber.Ctx) error
	BatchUpdatePrices(c fiber.Ctx) error
	RevertAdjustment(c fiber.Ctx) error
}

// PricingHandler handles price adjustment HTTP requests
type PricingHandler struct {
	adjustmentFlow businessflow.PriceAdjustmentFlow
	validator      *validator.Validate
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(adjustmentFlow businessflow.PriceAdjustmentFlow) *PricingHandler {
	return &PricingHandler{
		adjustmentFlow: adjustmentFlow,
		validator:      validator.New(),
	}
}

func (h *PricingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PricingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ProposeAdjustment computes a candidate price for a unit without applying it
func (h *PricingHandler) ProposeAdjustment(c fiber.Ctx) error {
	var req dto.ProposeAdjustmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.adjustmentFlow.ProposeAdjustment(createRequestContext(c, "/api/v1/pricing/propose"), &req)
	if err != nil {
		return h.adjustmentError(c, err, "Failed to propose adjustment", "PROPOSE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ApplyAdjustment commits a price change and its ledger entry atomically
func (h *PricingHandler) ApplyAdjustment(c fiber.Ctx) error {
	var req dto.ApplyAdjustmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.adjustmentFlow.ApplyAdjustment(createRequestContext(c, "/api/v1/pricing/apply"), &req)
	if err != nil {
		return h.adjustmentError(c, err, "Failed to apply adjustment", "APPLY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// BatchUpdatePrices recomputes prices across a scope of units
func (h *PricingHandler) BatchUpdatePrices(c fiber.Ctx) error {
	var req dto.BatchUpdateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	// batch runs can take a while on large sites
	ctx := createRequestContextWithTimeout(c, "/api/v1/pricing/batch", 2*time.Minute)

	result, err := h.adjustmentFlow.BatchUpdatePrices(ctx, &req)
	if err != nil {
		return h.adjustmentError(c, err, "Failed to run batch update", "BATCH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RevertAdjustment undoes a recent adjustment within the revert window
func (h *PricingHandler) RevertAdjustment(c fiber.Ctx) error {
	var req dto.RevertAdjustmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.adjustmentFlow.RevertAdjustment(createRequestContext(c, "/api/v1/pricing/revert"), &req)
	if err != nil {
		if businessflow.IsAlreadyReverted(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Adjustment already reverted", "ALREADY_REVERTED", nil)
		}
		if businessflow.IsRevertWindowPassed(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Revert window has passed", "REVERT_WINDOW_PASSED", nil)
		}
		return h.adjustmentError(c, err, "Failed to revert adjustment", "REVERT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// adjustmentError maps shared business errors onto HTTP statuses
func (h *PricingHandler) adjustmentError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsUnitNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Unit not found", "UNIT_NOT_FOUND", nil)
	}
	if businessflow.IsSiteNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Site not found", "SITE_NOT_FOUND", nil)
	}
	if businessflow.IsAdjustmentNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Adjustment not found", "ADJUSTMENT_NOT_FOUND", nil)
	}
	if businessflow.IsValidationError(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
