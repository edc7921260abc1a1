package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/service"
	"github.com/noah-isme/stde-go-api/internal/utils"
)

// ClassroomHandler serves teacher classroom endpoints.
type ClassroomHandler struct {
	classrooms service.ClassroomService
	documents  service.DocumentService
	logger     zerolog.Logger
}

// NewClassroomHandler constructs a classroom handler.
func NewClassroomHandler(classrooms service.ClassroomService, documents service.DocumentService, logger zerolog.Logger) *ClassroomHandler {
	return &ClassroomHandler{
		classrooms: classrooms,
		documents:  documents,
		logger:     logger.With().Str("component", "classroom_handler").Logger(),
	}
}

// Register wires classroom routes. The router is expected to enforce the teacher role.
func (h *ClassroomHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id/documents", h.documentsForClassroom)
}

func (h *ClassroomHandler) create(c *fiber.Ctx) error {
	var payload dto.ClassroomRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.classrooms.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to create classroom")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "classroom created", result)
}

func (h *ClassroomHandler) list(c *fiber.Ctx) error {
	results, err := h.classrooms.ListOwned(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list classrooms")
	}
	return utils.SendSuccess(c, "classrooms retrieved", results)
}

func (h *ClassroomHandler) documentsForClassroom(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
	}

	results, err := h.documents.ListForClassroom(c.UserContext(), id, userIDFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list classroom documents")
	}
	return utils.SendSuccess(c, "classroom documents retrieved", results)
}
