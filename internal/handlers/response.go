package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/services"
)

func success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": msg,
	})
}

// parseBody decodes the JSON body into out
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("parse_body", "Invalid request body")
	}
	return nil
}

// pageOf reads page (1-based) and limit query parameters
func pageOf(c *fiber.Ctx) services.Page {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	return services.Page{Limit: limit, Offset: (page - 1) * limit}
}

// timeOr returns *t, or the zero time when t is nil
func timeOr(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
