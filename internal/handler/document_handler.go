package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/service"
	"github.com/noah-isme/stde-go-api/internal/utils"
)

// DocumentHandler handles document uploads and lifecycle operations.
type DocumentHandler struct {
	service service.DocumentService
	logger  zerolog.Logger
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(service service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger.With().Str("component", "document_handler").Logger(),
	}
}

// Register wires document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/submit", h.submit)
	router.Delete("/:id", h.delete)
}

func (h *DocumentHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	var classroomID *uint
	if raw := strings.TrimSpace(c.FormValue("classroomId")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
		}
		id := uint(parsed)
		classroomID = &id
	}

	result, err := h.service.Upload(c.UserContext(), actorFromContext(c), classroomID, file)
	if err != nil {
		return handleServiceError(c, h.logger, err, "upload failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", result)
}

func (h *DocumentHandler) list(c *fiber.Ctx) error {
	results, err := h.service.ListForUser(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list documents")
	}
	return utils.SendSuccess(c, "documents retrieved", results)
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	result, err := h.service.Get(c.UserContext(), id, userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load document")
	}
	return utils.SendSuccess(c, "document retrieved", result)
}

func (h *DocumentHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	result, err := h.service.Submit(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to submit document")
	}
	return utils.SendSuccess(c, "document submitted", result)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	if err := h.service.Delete(c.UserContext(), id, actorFromContext(c)); err != nil {
		return handleServiceError(c, h.logger, err, "failed to delete document")
	}
	return utils.SendSuccess(c, "document deleted", nil)
}
