package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

type PlanHandler struct {
	plans *services.PlanService
}

func NewPlanHandler(plans *services.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List returns the active catalog, or every plan with ?all=true
func (h *PlanHandler) List(c *fiber.Ctx) error {
	var (
		plans []models.Plan
		err   error
	)
	if c.QueryBool("all") {
		plans, err = h.plans.ListAll(c.UserContext(), middleware.GetActor(c))
	} else {
		plans, err = h.plans.ListActive(c.UserContext())
	}
	if err != nil {
		return err
	}
	return success(c, plans)
}

func (h *PlanHandler) Get(c *fiber.Ctx) error {
	plan, err := h.plans.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, plan)
}

func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var plan models.Plan
	if err := parseBody(c, &plan); err != nil {
		return err
	}
	plan.ID = ""
	if err := h.plans.Create(c.UserContext(), middleware.GetActor(c), &plan); err != nil {
		return err
	}
	return created(c, plan)
}

func (h *PlanHandler) Update(c *fiber.Ctx) error {
	var patch services.PlanPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	plan, err := h.plans.Update(c.UserContext(), middleware.GetActor(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return success(c, plan)
}
