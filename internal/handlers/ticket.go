package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

type TicketHandler struct {
	tickets *services.TicketService
}

func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func ticketResponse(c *fiber.Ctx, t *models.Ticket, err error) error {
	if err != nil {
		return err
	}
	return success(c, t)
}

// List returns tickets visible to the caller
func (h *TicketHandler) List(c *fiber.Ctx) error {
	list, err := h.tickets.List(c.UserContext(), middleware.GetActor(c), services.TicketFilter{
		Status:     models.TicketStatus(c.Query("status")),
		ClientID:   c.Query("client_id"),
		AssignedTo: c.Query("assigned_to"),
		Page:       pageOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, list)
}

func (h *TicketHandler) Get(c *fiber.Ctx) error {
	t, err := h.tickets.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	return ticketResponse(c, t, err)
}

func (h *TicketHandler) Create(c *fiber.Ctx) error {
	var req services.TicketInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.tickets.Create(c.UserContext(), middleware.GetActor(c), req)
	if err != nil {
		return err
	}
	return created(c, t)
}

func (h *TicketHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.TicketStatus `json:"status"`
		Notes  string              `json:"resolution_notes"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.tickets.ChangeStatus(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Status, req.Notes)
	return ticketResponse(c, t, err)
}

func (h *TicketHandler) Assign(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.tickets.Assign(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.UserID)
	return ticketResponse(c, t, err)
}

// Reply adds a message to the ticket thread
func (h *TicketHandler) Reply(c *fiber.Ctx) error {
	var req struct {
		Message    string `json:"message"`
		IsInternal bool   `json:"is_internal"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.tickets.Reply(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Message, req.IsInternal)
	return ticketResponse(c, t, err)
}
