package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// auditSkip are mutating paths that carry credentials
var auditSkip = []string{"/api/auth/login", "/api/auth/password", "/api/auth/2fa"}

// AuditLogger writes one audit record per successful mutating request.
// Request bodies are never logged.
func AuditLogger(log *zap.Logger) fiber.Handler {
	audit := log.Named("audit")
	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}
		path := c.Path()
		for _, skip := range auditSkip {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		err := c.Next()

		// Only log successful responses
		status := c.Response().StatusCode()
		if err != nil || status < 200 || status >= 400 {
			return err
		}
		p, ok := GetPrincipal(c)
		if !ok {
			return nil
		}
		audit.Info(actionOf(method, path),
			zap.String("actor", p.SubjectID),
			zap.String("username", p.Username),
			zap.String("role", string(p.Role)),
			zap.String("entity", entityOf(path)),
			zap.String("entity_id", c.Params("id")),
			zap.String("route", c.Route().Path),
			zap.Int("status", status),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)
		return nil
	}
}

// actionOf names the action: create/update/delete, or the trailing verb
// segment for POST /api/<entity>/:id/<verb>.
func actionOf(method, path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if method == fiber.MethodPost && len(segs) >= 4 {
		return segs[len(segs)-1]
	}
	switch method {
	case fiber.MethodPost:
		return "create"
	case fiber.MethodPut, fiber.MethodPatch:
		return "update"
	case fiber.MethodDelete:
		return "delete"
	}
	return strings.ToLower(method)
}

// entityOf returns the resource segment after /api/
func entityOf(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) >= 2 && segs[0] == "api" {
		return segs[1]
	}
	return ""
}
