package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/services"
)

type UserHandler struct {
	auth *services.AuthService
}

func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext(), middleware.GetActor(c), pageOf(c))
	if err != nil {
		return err
	}
	return success(c, users)
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req services.UserInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.auth.CreateUser(c.UserContext(), middleware.GetActor(c), req)
	if err != nil {
		return err
	}
	return created(c, u)
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	var req services.UserPatch
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.auth.UpdateUser(c.UserContext(), middleware.GetActor(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return success(c, u)
}
