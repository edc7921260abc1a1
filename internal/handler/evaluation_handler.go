package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/middleware"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/service"
	"github.com/noah-isme/stde-go-api/internal/utils"
)

// EvaluationHandler exposes the evaluation pipeline, usage and override endpoints.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	overrides   service.OverrideService
	quota       service.QuotaTracker
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(evaluations service.EvaluationService, overrides service.OverrideService, quota service.QuotaTracker, validate *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		overrides:   overrides,
		quota:       quota,
		validator:   validate,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes. The router is expected to be JWT protected.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/evaluate/:documentId", h.evaluate)
	router.Get("/usage", h.usage)
	router.Get("/document/:documentId", h.getByDocument)
	router.Get("/user", h.listForUser)
	router.Put("/override/:documentId", middleware.RequireRole(models.UserRoleTeacher, models.UserRoleAdmin), h.override)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	documentID, err := parseUintParam(c, "documentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	result, err := h.evaluations.Evaluate(c.UserContext(), documentID, actorFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "evaluation failed")
	}

	message := "evaluation completed"
	if result.Cached {
		message = "evaluation retrieved from cache"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *EvaluationHandler) usage(c *fiber.Ctx) error {
	stats, err := h.quota.UsageStats(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load usage")
	}
	return utils.SendSuccess(c, "usage retrieved", stats)
}

func (h *EvaluationHandler) getByDocument(c *fiber.Ctx) error {
	documentID, err := parseUintParam(c, "documentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	result, err := h.evaluations.GetByDocument(c.UserContext(), documentID, userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load evaluation")
	}
	return utils.SendSuccess(c, "evaluation retrieved", result)
}

func (h *EvaluationHandler) listForUser(c *fiber.Ctx) error {
	results, err := h.evaluations.ListForUser(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list evaluations")
	}
	return utils.SendSuccess(c, "evaluations retrieved", results)
}

func (h *EvaluationHandler) override(c *fiber.Ctx) error {
	documentID, err := parseUintParam(c, "documentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	var payload dto.OverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "overallScore is required")
	}

	result, err := h.overrides.Override(c.UserContext(), documentID, actorFromContext(c), *payload.OverallScore)
	if err != nil {
		return handleServiceError(c, h.logger, err, "override failed")
	}
	return utils.SendSuccess(c, "score overridden", result)
}
