package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

type EquipmentHandler struct {
	equipment *services.EquipmentService
}

func NewEquipmentHandler(equipment *services.EquipmentService) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipment}
}

func (h *EquipmentHandler) List(c *fiber.Ctx) error {
	list, err := h.equipment.List(c.UserContext(), middleware.GetActor(c), services.EquipmentFilter{
		ClientID: c.Query("client_id"),
		Kind:     models.EquipmentKind(c.Query("kind")),
		Status:   models.EquipmentStatus(c.Query("status")),
		Page:     pageOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, list)
}

func (h *EquipmentHandler) Get(c *fiber.Ctx) error {
	e, err := h.equipment.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, e)
}

func (h *EquipmentHandler) Register(c *fiber.Ctx) error {
	var e models.Equipment
	if err := parseBody(c, &e); err != nil {
		return err
	}
	e.ID = ""
	if err := h.equipment.Register(c.UserContext(), middleware.GetActor(c), &e); err != nil {
		return err
	}
	return created(c, e)
}

// Report applies an external connectivity check result
func (h *EquipmentHandler) Report(c *fiber.Ctx) error {
	var req services.ConnectivityReport
	if err := parseBody(c, &req); err != nil {
		return err
	}
	e, err := h.equipment.ReportConnectivity(c.UserContext(), middleware.GetActor(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return success(c, e)
}

func (h *EquipmentHandler) SetMaintenance(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	e, err := h.equipment.SetMaintenance(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Enabled)
	if err != nil {
		return err
	}
	return success(c, e)
}
