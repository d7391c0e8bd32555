package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/services"
	"go.uber.org/zap"
)

// ErrorHandler renders every error returned by a handler or middleware
// with the standard envelope.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusOf(err)
		body := fiber.Map{
			"success": false,
			"message": err.Error(),
		}
		if kind := apperr.KindOf(err); kind != nil {
			body["error"] = kind.Error()
		}
		if code == fiber.StatusInternalServerError {
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			body["message"] = "Internal server error"
		}
		return c.Status(code).JSON(body)
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch {
	case errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrTwoFactorRequired):
		return fiber.StatusUnauthorized
	}
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return fiber.StatusBadRequest
	case apperr.ErrNotFound:
		return fiber.StatusNotFound
	case apperr.ErrInvalidState, apperr.ErrConflict:
		return fiber.StatusConflict
	case apperr.ErrAuthorization:
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}
