package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"github.com/vigilnet/backend/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaxName labels the tax line added from the receipt tax rate
const TaxName = "IVA"

// BillingSettings are the ledger defaults taken from configuration
type BillingSettings struct {
	DefaultTaxRate decimal.Decimal // percent
	LateFeeRate    decimal.Decimal // percent of the taxable amount
	DueDays        int
}

var maxTaxRate = decimal.NewFromInt(100)

// ReceiptService is the payment ledger
type ReceiptService struct {
	Deps
	settings BillingSettings
}

func NewReceiptService(deps Deps, settings BillingSettings) *ReceiptService {
	if settings.DueDays <= 0 {
		settings.DueDays = 30
	}
	return &ReceiptService{Deps: deps.withDefaults(), settings: settings}
}

type ReceiptInput struct {
	ClientID          string                    `json:"client_id"`
	Services          []models.ServiceLineItem  `json:"services"`
	AdditionalCharges []models.AdditionalCharge `json:"additional_charges"`
	Discounts         []models.ReceiptDiscount  `json:"discounts"`
	TaxRate           *decimal.Decimal          `json:"tax_rate"`
	DueDate           *time.Time                `json:"due_date"`
	Notes             string                    `json:"notes"`
}

type PartialPaymentInput struct {
	Amount        decimal.Decimal      `json:"amount"`
	Method        models.PaymentMethod `json:"method"`
	TransactionID string               `json:"transaction_id"`
	Notes         string               `json:"notes"`
}

type FullPaymentInput struct {
	Method        models.PaymentMethod `json:"method"`
	TransactionID string               `json:"transaction_id"`
	BankName      string               `json:"bank_name"`
}

type ReceiptFilter struct {
	ClientID string
	Status   models.PaymentStatus
	Page
}

// OverdueReceipt pairs a pending receipt with how late it is
type OverdueReceipt struct {
	models.Payment
	DaysOverdue int `json:"days_overdue"`
}

func (s *ReceiptService) Create(ctx context.Context, actor policy.Actor, in ReceiptInput) (*models.Payment, error) {
	const op = "create_receipt"
	if err := s.Policy.Check(actor, policy.ActionReceiptCreate); err != nil {
		return nil, err
	}
	rate := s.settings.DefaultTaxRate
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	if rate.IsNegative() || rate.GreaterThan(maxTaxRate) {
		return nil, apperr.Validation(op, "tax_rate %s must be between 0 and 100", rate)
	}
	client, err := requireClient(ctx, s.Deps, op, in.ClientID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	p := &models.Payment{
		ClientID:          client.ID,
		Services:          in.Services,
		AdditionalCharges: in.AdditionalCharges,
		Discounts:         in.Discounts,
		Status:            models.PaymentStatusPending,
		Notes:             in.Notes,
		CreatedBy:         actor.SubjectID,
	}
	if rate.IsPositive() {
		p.Taxes = []models.TaxLine{{Name: TaxName, Rate: rate}}
	}
	if in.DueDate != nil {
		p.DueDate = *in.DueDate
	} else {
		p.DueDate = now.AddDate(0, 0, s.settings.DueDays)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkServicesBelong(ctx, op, client.ID, p.ServiceIDs()); err != nil {
		return nil, err
	}

	err = sequence.Assign(ctx, sequence.DefaultAttempts,
		func(ctx context.Context) (string, error) { return s.Numberer.ReceiptNumber(ctx, now) },
		func(number string) error {
			p.ReceiptNumber = number
			return apperr.FromDB(op, s.DB.WithContext(ctx).Create(p).Error, "receipt number "+number)
		})
	if err != nil {
		return nil, err
	}
	s.Metrics.ReceiptCreated()
	s.Log.Info("receipt created",
		zap.String("receipt_number", p.ReceiptNumber),
		zap.String("client_id", p.ClientID),
		zap.Stringer("total", p.TotalAmount))
	return p, nil
}

func (s *ReceiptService) checkServicesBelong(ctx context.Context, op, clientID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var owned []string
	err := s.DB.WithContext(ctx).Model(&models.InternetService{}).
		Where("id IN ? AND client_id = ?", ids, clientID).
		Pluck("id", &owned).Error
	if err != nil {
		return apperr.FromDB(op, err, "service")
	}
	have := make(map[string]bool, len(owned))
	for _, id := range owned {
		have[id] = true
	}
	for _, id := range ids {
		if !have[id] {
			return apperr.Validation(op, "service %s does not belong to client %s", id, clientID)
		}
	}
	return nil
}

func (s *ReceiptService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	if err := s.Policy.Check(actor, policy.ActionReceiptView); err != nil {
		return nil, err
	}
	var p models.Payment
	if err := load(ctx, s.DB, "get_receipt", "receipt", id, &p); err != nil {
		return nil, err
	}
	if err := s.Policy.CheckOwner(actor, policy.ActionReceiptView, p.ClientID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ReceiptService) List(ctx context.Context, actor policy.Actor, f ReceiptFilter) ([]models.Payment, error) {
	if err := s.Policy.Check(actor, policy.ActionReceiptView); err != nil {
		return nil, err
	}
	q := s.scoped(ctx, actor, f.ClientID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.Payment
	if err := f.Page.apply(q).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromDB("list_receipts", err, "receipt")
	}
	return out, nil
}

// ListOverdue returns pending receipts past their due date, oldest first
func (s *ReceiptService) ListOverdue(ctx context.Context, actor policy.Actor, clientID string) ([]OverdueReceipt, error) {
	if err := s.Policy.Check(actor, policy.ActionReceiptView); err != nil {
		return nil, err
	}
	now := s.Now()
	var pending []models.Payment
	err := s.scoped(ctx, actor, clientID).
		Where("status = ? AND due_date < ?", models.PaymentStatusPending, now).
		Order("due_date").Find(&pending).Error
	if err != nil {
		return nil, apperr.FromDB("list_overdue", err, "receipt")
	}
	out := make([]OverdueReceipt, 0, len(pending))
	for _, p := range pending {
		if p.IsOverdue(now) {
			out = append(out, OverdueReceipt{Payment: p, DaysOverdue: p.DaysOverdue(now)})
		}
	}
	return out, nil
}

func (s *ReceiptService) scoped(ctx context.Context, actor policy.Actor, clientID string) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&models.Payment{})
	if actor.IsClient() {
		return q.Where("client_id = ?", actor.ClientID)
	}
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	return q
}

func (s *ReceiptService) mutate(ctx context.Context, actor policy.Actor, action policy.Action, op, id string,
	fn func(p *models.Payment, now time.Time) error) (*models.Payment, error) {
	if err := s.Policy.Check(actor, action); err != nil {
		return nil, err
	}
	var p models.Payment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(ctx, tx, op, "receipt", id, &p); err != nil {
			return err
		}
		if err := fn(&p, s.Now()); err != nil {
			return err
		}
		return apperr.FromDB(op, tx.Save(&p).Error, "receipt")
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("receipt updated",
		zap.String("op", op),
		zap.String("receipt_number", p.ReceiptNumber),
		zap.String("status", string(p.Status)),
		zap.String("actor", actor.SubjectID))
	return &p, nil
}

func (s *ReceiptService) AddPartialPayment(ctx context.Context, actor policy.Actor, id string, in PartialPaymentInput) (*models.Payment, error) {
	p, err := s.mutate(ctx, actor, policy.ActionReceiptPay, "add_partial_payment", id,
		func(p *models.Payment, now time.Time) error {
			return p.AddPartialPayment(models.PartialPayment{
				Amount:        in.Amount,
				Method:        in.Method,
				TransactionID: in.TransactionID,
				Notes:         in.Notes,
				ReceivedBy:    actor.SubjectID,
				PaidAt:        now,
			})
		})
	if err != nil {
		return nil, err
	}
	s.Metrics.PaymentRecorded("partial", in.Amount.InexactFloat64())
	return p, nil
}

// ProcessFullPayment settles the receipt. A late settlement carries the
// configured late fee.
func (s *ReceiptService) ProcessFullPayment(ctx context.Context, actor policy.Actor, id string, in FullPaymentInput) (*models.Payment, error) {
	var settled decimal.Decimal
	p, err := s.mutate(ctx, actor, policy.ActionReceiptPay, "process_full_payment", id,
		func(p *models.Payment, now time.Time) error {
			if err := p.ProcessFullPayment(models.FullPayment{
				Method:        in.Method,
				TransactionID: in.TransactionID,
				BankName:      in.BankName,
				LateFeeRate:   s.settings.LateFeeRate,
				PaidAt:        now,
			}); err != nil {
				return err
			}
			settled = p.Balance()
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.Metrics.PaymentRecorded("full", settled.InexactFloat64())
	return p, nil
}

// ProcessRefund refunds amount, or the whole total when amount is nil
func (s *ReceiptService) ProcessRefund(ctx context.Context, actor policy.Actor, id string, amount *decimal.Decimal, reason string) (*models.Payment, error) {
	p, err := s.mutate(ctx, actor, policy.ActionReceiptRefund, "process_refund", id,
		func(p *models.Payment, now time.Time) error {
			return p.ProcessRefund(amount, reason, actor.SubjectID, now)
		})
	if err != nil {
		return nil, err
	}
	s.Metrics.PaymentRecorded("refund", p.Refund.Amount.InexactFloat64())
	return p, nil
}

func (s *ReceiptService) Cancel(ctx context.Context, actor policy.Actor, id, reason string) (*models.Payment, error) {
	return s.mutate(ctx, actor, policy.ActionReceiptVoid, "cancel_receipt", id,
		func(p *models.Payment, _ time.Time) error {
			return p.Cancel(reason)
		})
}

func (s *ReceiptService) MarkFailed(ctx context.Context, actor policy.Actor, id, reason string) (*models.Payment, error) {
	return s.mutate(ctx, actor, policy.ActionReceiptPay, "mark_failed", id,
		func(p *models.Payment, _ time.Time) error {
			return p.MarkFailed(reason)
		})
}
