package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

type ClientHandler struct {
	clients *services.ClientService
}

func NewClientHandler(clients *services.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// List supports ?search= and ?active=true|false
func (h *ClientHandler) List(c *fiber.Ctx) error {
	f := services.ClientFilter{Search: c.Query("search"), Page: pageOf(c)}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}
	clients, err := h.clients.List(c.UserContext(), middleware.GetActor(c), f)
	if err != nil {
		return err
	}
	return success(c, clients)
}

func (h *ClientHandler) Get(c *fiber.Ctx) error {
	client, err := h.clients.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, client)
}

func (h *ClientHandler) Create(c *fiber.Ctx) error {
	var client models.Client
	if err := parseBody(c, &client); err != nil {
		return err
	}
	client.ID = ""
	if err := h.clients.Create(c.UserContext(), middleware.GetActor(c), &client); err != nil {
		return err
	}
	return created(c, client)
}

func (h *ClientHandler) Update(c *fiber.Ctx) error {
	var patch services.ClientPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	client, err := h.clients.Update(c.UserContext(), middleware.GetActor(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return success(c, client)
}
