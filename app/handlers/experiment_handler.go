package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/storekeep/pricing-core/app/dto"
	businessflow "github.com/storekeep/pricing-core/business_flow"
)

// ExperimentHandlerInterface defines the contract for experiment handlers
type ExperimentHandlerInterface interface {
	Create(c fiber.Ctx) error
	Start(c fiber.Ctx) error
	Pause(c fiber.Ctx) error
	Complete(c fiber.Ctx) error
	Results(c fiber.Ctx) error
	AssignVariant(c fiber.Ctx) error
	RecordExposure(c fiber.Ctx) error
	RecordConversion(c fiber.Ctx) error
}

// ExperimentHandler handles pricing experiment HTTP requests
type ExperimentHandler struct {
	experimentFlow businessflow.ExperimentFlow
	validator      *validator.Validate
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(experimentFlow businessflow.ExperimentFlow) *ExperimentHandler {
	return &ExperimentHandler{
		experimentFlow: experimentFlow,
		validator:      validator.New(),
	}
}

func (h *ExperimentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ExperimentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Create registers a new draft experiment
func (h *ExperimentHandler) Create(c fiber.Ctx) error {
	var req dto.CreateExperimentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.experimentFlow.Create(createRequestContext(c, "/api/v1/experiments"), &req)
	if err != nil {
		return h.experimentError(c, err, "Failed to create experiment", "EXPERIMENT_CREATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// Start moves an experiment into the running state
func (h *ExperimentHandler) Start(c fiber.Ctx) error {
	experimentUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid experiment UUID", "INVALID_UUID", nil)
	}

	result, err := h.experimentFlow.Start(createRequestContext(c, "/api/v1/experiments/start"), experimentUUID)
	if err != nil {
		return h.experimentError(c, err, "Failed to start experiment", "EXPERIMENT_START_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Pause suspends a running experiment
func (h *ExperimentHandler) Pause(c fiber.Ctx) error {
	experimentUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid experiment UUID", "INVALID_UUID", nil)
	}

	result, err := h.experimentFlow.Pause(createRequestContext(c, "/api/v1/experiments/pause"), experimentUUID)
	if err != nil {
		return h.experimentError(c, err, "Failed to pause experiment", "EXPERIMENT_PAUSE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Complete finishes an experiment and optionally applies the winner
func (h *ExperimentHandler) Complete(c fiber.Ctx) error {
	var req dto.CompleteExperimentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.experimentFlow.Complete(createRequestContext(c, "/api/v1/experiments/complete"), &req)
	if err != nil {
		return h.experimentError(c, err, "Failed to complete experiment", "EXPERIMENT_COMPLETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Results reports current experiment performance
func (h *ExperimentHandler) Results(c fiber.Ctx) error {
	experimentUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid experiment UUID", "INVALID_UUID", nil)
	}

	result, err := h.experimentFlow.Results(createRequestContext(c, "/api/v1/experiments/results"), experimentUUID)
	if err != nil {
		return h.experimentError(c, err, "Failed to compute results", "EXPERIMENT_RESULTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// AssignVariant returns a visitor's stable variant assignment
func (h *ExperimentHandler) AssignVariant(c fiber.Ctx) error {
	var req dto.AssignVariantRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.experimentFlow.AssignVariant(createRequestContext(c, "/api/v1/experiments/assign"), &req)
	if err != nil {
		return h.experimentError(c, err, "Failed to assign variant", "ASSIGN_VARIANT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RecordExposure records a visitor's exposure under their stable assignment
func (h *ExperimentHandler) RecordExposure(c fiber.Ctx) error {
	var req dto.RecordExposureRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.experimentFlow.RecordExposure(createRequestContext(c, "/api/v1/experiments/expose"), &req)
	if err != nil {
		return h.experimentError(c, err, "Failed to record exposure", "RECORD_EXPOSURE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RecordConversion attributes a booking to a prior exposure
func (h *ExperimentHandler) RecordConversion(c fiber.Ctx) error {
	var req dto.RecordConversionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.experimentFlow.RecordConversion(createRequestContext(c, "/api/v1/experiments/convert"), &req)
	if err != nil {
		return h.experimentError(c, err, "Failed to record conversion", "RECORD_CONVERSION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// experimentError maps experiment business errors onto HTTP statuses
func (h *ExperimentHandler) experimentError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsExperimentNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Experiment not found", "EXPERIMENT_NOT_FOUND", nil)
	}
	if businessflow.IsSiteNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Site not found", "SITE_NOT_FOUND", nil)
	}
	if businessflow.IsInvalidStateTransition(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Invalid experiment state transition", "INVALID_STATE_TRANSITION", nil)
	}
	if businessflow.IsExperimentNotRunning(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Experiment is not running", "EXPERIMENT_NOT_RUNNING", nil)
	}
	if businessflow.IsValidationError(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
