package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
)

// ReceiptHandler exposes the payment ledger
type ReceiptHandler struct {
	receipts *services.ReceiptService
}

func NewReceiptHandler(receipts *services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

func receiptResponse(c *fiber.Ctx, p *models.Payment, err error) error {
	if err != nil {
		return err
	}
	return success(c, p)
}

func (h *ReceiptHandler) List(c *fiber.Ctx) error {
	list, err := h.receipts.List(c.UserContext(), middleware.GetActor(c), services.ReceiptFilter{
		ClientID: c.Query("client_id"),
		Status:   models.PaymentStatus(c.Query("status")),
		Page:     pageOf(c),
	})
	if err != nil {
		return err
	}
	return success(c, list)
}

func (h *ReceiptHandler) ListOverdue(c *fiber.Ctx) error {
	list, err := h.receipts.ListOverdue(c.UserContext(), middleware.GetActor(c), c.Query("client_id"))
	if err != nil {
		return err
	}
	return success(c, list)
}

func (h *ReceiptHandler) Get(c *fiber.Ctx) error {
	p, err := h.receipts.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	return receiptResponse(c, p, err)
}

func (h *ReceiptHandler) Create(c *fiber.Ctx) error {
	var req services.ReceiptInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, err := h.receipts.Create(c.UserContext(), middleware.GetActor(c), req)
	if err != nil {
		return err
	}
	return created(c, p)
}

// AddPayment records a partial payment
func (h *ReceiptHandler) AddPayment(c *fiber.Ctx) error {
	var req services.PartialPaymentInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, err := h.receipts.AddPartialPayment(c.UserContext(), middleware.GetActor(c), c.Params("id"), req)
	return receiptResponse(c, p, err)
}

// Pay settles the whole receipt
func (h *ReceiptHandler) Pay(c *fiber.Ctx) error {
	var req services.FullPaymentInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, err := h.receipts.ProcessFullPayment(c.UserContext(), middleware.GetActor(c), c.Params("id"), req)
	return receiptResponse(c, p, err)
}

func (h *ReceiptHandler) Refund(c *fiber.Ctx) error {
	var req struct {
		Amount *decimal.Decimal `json:"amount"`
		Reason string           `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, err := h.receipts.ProcessRefund(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Amount, req.Reason)
	return receiptResponse(c, p, err)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *ReceiptHandler) Cancel(c *fiber.Ctx) error {
	var req reasonRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	p, err := h.receipts.Cancel(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason)
	return receiptResponse(c, p, err)
}

func (h *ReceiptHandler) MarkFailed(c *fiber.Ctx) error {
	var req reasonRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	p, err := h.receipts.MarkFailed(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason)
	return receiptResponse(c, p, err)
}
