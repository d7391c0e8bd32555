package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
)

// Setup2FA generates a new TOTP secret for the current user
func (h *AuthHandler) Setup2FA(c *fiber.Ctx) error {
	p, _ := middleware.GetPrincipal(c)
	setup, err := h.auth.SetupTwoFactor(c.UserContext(), p)
	if err != nil {
		return err
	}
	return success(c, setup)
}

// Verify2FA enables 2FA after the first valid code
func (h *AuthHandler) Verify2FA(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, _ := middleware.GetPrincipal(c)
	if err := h.auth.VerifyTwoFactor(c.UserContext(), p, req.Code); err != nil {
		return err
	}
	return message(c, "Two-factor authentication enabled")
}

// Disable2FA requires the account password
func (h *AuthHandler) Disable2FA(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, _ := middleware.GetPrincipal(c)
	if err := h.auth.DisableTwoFactor(c.UserContext(), p, req.Password); err != nil {
		return err
	}
	return message(c, "Two-factor authentication disabled")
}
