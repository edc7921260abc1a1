package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/service"
	"github.com/noah-isme/stde-go-api/internal/utils"
)

const rateLimitedRetryAfterSeconds = 30

// statusFor maps service errors onto HTTP status codes. Unknown errors map to 500.
func statusFor(err error) int {
	switch {
	case isValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrQuotaExceeded), errors.Is(err, service.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, service.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrEvaluationNotFound),
		errors.Is(err, service.ErrClassroomNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrDocumentBusy),
		errors.Is(err, service.ErrDocumentAlreadySubmitted),
		errors.Is(err, service.ErrDocumentImmutable):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidDocumentType),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrUploadEmpty):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedFileType), errors.Is(err, service.ErrSourceUnavailable):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrEvaluationCancelled):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// handleServiceError writes the error envelope for err. Classified evaluation failures expose
// their kind message only; the cause stays in the logs.
func handleServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	status := statusFor(err)
	message := err.Error()

	var evalErr *service.EvaluationError
	if errors.As(err, &evalErr) {
		message = evalErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		if evalErr == nil {
			message = fallback
		}
	}

	if status == fiber.StatusTooManyRequests {
		return utils.SendRetryLater(c, status, message, retryAfterSeconds(err))
	}
	return utils.SendError(c, status, message)
}

func retryAfterSeconds(err error) int {
	var quotaErr *service.QuotaExceededError
	if errors.As(err, &quotaErr) && quotaErr.SecondsRemaining > 0 {
		return int(quotaErr.SecondsRemaining)
	}
	return rateLimitedRetryAfterSeconds
}
