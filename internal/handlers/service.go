package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

// ServiceHandler exposes internet service subscriptions
type ServiceHandler struct {
	subs *services.SubscriptionService
}

func NewServiceHandler(subs *services.SubscriptionService) *ServiceHandler {
	return &ServiceHandler{subs: subs}
}

// respond renders the result of a subscription operation
func respond(c *fiber.Ctx, svc *models.InternetService, err error) error {
	if err != nil {
		return err
	}
	return success(c, svc)
}

func (h *ServiceHandler) List(c *fiber.Ctx) error {
	list, err := h.subs.List(c.UserContext(), middleware.GetActor(c), services.ServiceFilter{
		ClientID: c.Query("client_id"),
		Status:   models.ServiceStatus(c.Query("status")),
		Page:     pageOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, list)
}

func (h *ServiceHandler) Get(c *fiber.Ctx) error {
	svc, err := h.subs.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	return respond(c, svc, err)
}

func (h *ServiceHandler) Create(c *fiber.Ctx) error {
	var req services.SubscriptionInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.Create(c.UserContext(), middleware.GetActor(c), req)
	if err != nil {
		return err
	}
	return created(c, svc)
}

func (h *ServiceHandler) Usage(c *fiber.Ctx) error {
	usage, err := h.subs.Usage(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, usage)
}

type installRequest struct {
	TechnicianID       string                      `json:"technician_id"`
	EquipmentInstalled []models.InstalledEquipment `json:"equipment_installed"`
	IPAddress          string                      `json:"ip_address"`
	Notes              string                      `json:"notes"`
	Photos             []string                    `json:"photos"`
	Signature          string                      `json:"customer_signature"`
}

func (h *ServiceHandler) CompleteInstallation(c *fiber.Ctx) error {
	var req installRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.CompleteInstallation(c.UserContext(), middleware.GetActor(c), c.Params("id"), models.InstallationReport{
		TechnicianID:       req.TechnicianID,
		EquipmentInstalled: req.EquipmentInstalled,
		IPAddress:          req.IPAddress,
		Notes:              req.Notes,
		Photos:             req.Photos,
		Signature:          req.Signature,
	})
	return respond(c, svc, err)
}

func (h *ServiceHandler) Suspend(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.Suspend(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason, req.Notes)
	return respond(c, svc, err)
}

func (h *ServiceHandler) Reactivate(c *fiber.Ctx) error {
	var req struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	svc, err := h.subs.Reactivate(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Notes)
	return respond(c, svc, err)
}

func (h *ServiceHandler) ChangePlan(c *fiber.Ctx) error {
	var req struct {
		PlanID        string     `json:"plan_id"`
		Reason        string     `json:"reason"`
		EffectiveDate *time.Time `json:"effective_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.ChangePlan(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.PlanID, req.Reason, timeOr(req.EffectiveDate))
	return respond(c, svc, err)
}

func (h *ServiceHandler) RecordUsage(c *fiber.Ctx) error {
	var req struct {
		DownloadGB float64 `json:"download_gb"`
		UploadGB   float64 `json:"upload_gb"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.RecordDataUsage(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.DownloadGB, req.UploadGB)
	return respond(c, svc, err)
}

func (h *ServiceHandler) AddDiscount(c *fiber.Ctx) error {
	var d models.Discount
	if err := parseBody(c, &d); err != nil {
		return err
	}
	svc, err := h.subs.AddDiscount(c.UserContext(), middleware.GetActor(c), c.Params("id"), d)
	return respond(c, svc, err)
}

func (h *ServiceHandler) UpdateSchedule(c *fiber.Ctx) error {
	var req struct {
		StartDate  *time.Time `json:"start_date"`
		BillingDay *int       `json:"billing_day"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.UpdateSchedule(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.StartDate, req.BillingDay)
	return respond(c, svc, err)
}

func (h *ServiceHandler) AddNote(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.AddNote(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Text)
	return respond(c, svc, err)
}

func (h *ServiceHandler) RecordMonitoring(c *fiber.Ctx) error {
	var req services.MonitoringReport
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.RecordMonitoring(c.UserContext(), middleware.GetActor(c), c.Params("id"), req)
	return respond(c, svc, err)
}

func (h *ServiceHandler) RequestCancellation(c *fiber.Ctx) error {
	var req struct {
		Reason        string     `json:"reason"`
		EffectiveDate *time.Time `json:"effective_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.RequestCancellation(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason, timeOr(req.EffectiveDate))
	return respond(c, svc, err)
}

func (h *ServiceHandler) Cancel(c *fiber.Ctx) error {
	svc, err := h.subs.Cancel(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	return respond(c, svc, err)
}

func (h *ServiceHandler) SetMaintenance(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.subs.SetMaintenance(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Enabled)
	return respond(c, svc, err)
}
