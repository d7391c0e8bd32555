package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vigilnet/backend/internal/apperr"
	"gorm.io/gorm"
)

// PaymentStatus represents the status of a receipt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusPartial   PaymentStatus = "partial"
)

// ChargeType classifies additional charges
type ChargeType string

const (
	ChargeInstallation ChargeType = "installation"
	ChargeEquipment    ChargeType = "equipment"
	ChargeMaintenance  ChargeType = "maintenance"
	ChargePenalty      ChargeType = "penalty"
	ChargeReconnection ChargeType = "reconnection"
	ChargeOther        ChargeType = "other"
)

// ReceiptDiscountType is percentage (of the subtotal) or fixed
type ReceiptDiscountType string

const (
	ReceiptDiscountPercentage ReceiptDiscountType = "percentage"
	ReceiptDiscountFixed      ReceiptDiscountType = "fixed"
)

// PaymentMethod is informational; no gateway is called
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodOnline   PaymentMethod = "online"
)

const day = 24 * time.Hour

// ServiceLineItem bills one service for the period [PeriodStart, PeriodEnd)
type ServiceLineItem struct {
	ServiceID   string          `json:"service_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
}

type AdditionalCharge struct {
	Type        ChargeType      `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type ReceiptDiscount struct {
	Type        ReceiptDiscountType `json:"type"`
	Value       decimal.Decimal     `json:"value"`
	Description string              `json:"description"`
	Amount      decimal.Decimal     `json:"amount"` // derived
}

type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`   // percent
	Amount decimal.Decimal `json:"amount"` // derived
}

type PartialPayment struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	ReceivedBy    string          `json:"received_by,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

type LatePayment struct {
	IsLate          bool            `gorm:"column:is_late" json:"is_late"`
	DaysLate        int             `gorm:"column:days_late" json:"days_late"`
	LateFeesApplied decimal.Decimal `gorm:"column:fees_applied;type:decimal(15,2)" json:"late_fees_applied"`
	LateFeeRate     decimal.Decimal `gorm:"column:fee_rate;type:decimal(5,2)" json:"late_fee_rate"`
}

type Refund struct {
	IsRefunded bool            `json:"is_refunded"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	RefundedBy string          `json:"refunded_by,omitempty"`
	RefundedAt *time.Time      `json:"refunded_at,omitempty"`
}

// Payment is a receipt: billed services, charges, discounts and taxes for
// one client. Totals are derived on every save.
type Payment struct {
	ID            string `gorm:"column:id;primaryKey;size:36" json:"id"`
	ClientID      string `gorm:"column:client_id;size:36;not null;index" json:"client_id"`
	ReceiptNumber string `gorm:"column:receipt_number;size:20;uniqueIndex;not null" json:"receipt_number"`

	Services          []ServiceLineItem  `gorm:"column:services;serializer:json" json:"services"`
	AdditionalCharges []AdditionalCharge `gorm:"column:additional_charges;serializer:json" json:"additional_charges"`
	Discounts         []ReceiptDiscount  `gorm:"column:discounts;serializer:json" json:"discounts"`
	Taxes             []TaxLine          `gorm:"column:taxes;serializer:json" json:"taxes"`

	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:decimal(15,2)" json:"subtotal"`
	TotalDiscounts decimal.Decimal `gorm:"column:total_discounts;type:decimal(15,2)" json:"total_discounts"`
	TaxableAmount  decimal.Decimal `gorm:"column:taxable_amount;type:decimal(15,2)" json:"taxable_amount"`
	TotalTaxes     decimal.Decimal `gorm:"column:total_taxes;type:decimal(15,2)" json:"total_taxes"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:decimal(15,2)" json:"total_amount"`

	Status        PaymentStatus `gorm:"column:status;size:20;default:pending;index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"column:payment_method;size:20" json:"payment_method"`
	TransactionID string        `gorm:"column:transaction_id;size:100" json:"transaction_id"`
	BankName      string        `gorm:"column:bank_name;size:100" json:"bank_name"`
	DueDate       time.Time     `gorm:"column:due_date;index" json:"due_date"`
	PaymentDate   *time.Time    `gorm:"column:payment_date" json:"payment_date"`

	PartialPayments []PartialPayment `gorm:"column:partial_payments;serializer:json" json:"partial_payments"`
	LatePayment     LatePayment      `gorm:"embedded;embeddedPrefix:late_" json:"late_payment"`
	Refund          Refund           `gorm:"column:refund;serializer:json" json:"refund"`

	Notes     string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedBy string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps derived totals in step with their inputs
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	p.Recalculate()
	return nil
}

// Recalculate derives every total from line items, charges, discounts,
// tax rates and applied late fees.
func (p *Payment) Recalculate() {
	subtotal := decimal.Zero
	for _, s := range p.Services {
		subtotal = subtotal.Add(s.Amount)
	}
	for _, c := range p.AdditionalCharges {
		subtotal = subtotal.Add(c.Amount)
	}
	p.Subtotal = roundMoney(subtotal)

	discounts := decimal.Zero
	for i := range p.Discounts {
		d := &p.Discounts[i]
		if d.Type == ReceiptDiscountPercentage {
			d.Amount = percentOf(p.Subtotal, d.Value)
		} else {
			d.Amount = roundMoney(d.Value)
		}
		discounts = discounts.Add(d.Amount)
	}
	p.TotalDiscounts = discounts
	p.TaxableAmount = p.Subtotal.Sub(p.TotalDiscounts)

	taxes := decimal.Zero
	for i := range p.Taxes {
		t := &p.Taxes[i]
		t.Amount = percentOf(p.TaxableAmount, t.Rate)
		taxes = taxes.Add(t.Amount)
	}
	p.TotalTaxes = taxes
	p.TotalAmount = p.TaxableAmount.Add(p.TotalTaxes).Add(roundMoney(p.LatePayment.LateFeesApplied))
}

// Validate checks receipt inputs before the first save
func (p *Payment) Validate() error {
	if len(p.Services) == 0 && len(p.AdditionalCharges) == 0 {
		return errField("services", "at least one line item or charge is required")
	}
	for _, s := range p.Services {
		if s.ServiceID == "" {
			return errField("services.service_id", "is required")
		}
		if s.Amount.IsNegative() {
			return errField("services.amount", "must not be negative")
		}
		if !s.PeriodStart.IsZero() && !s.PeriodEnd.IsZero() && !s.PeriodEnd.After(s.PeriodStart) {
			return errField("services.period", "end must be after start")
		}
	}
	for _, c := range p.AdditionalCharges {
		switch c.Type {
		case ChargeInstallation, ChargeEquipment, ChargeMaintenance, ChargePenalty, ChargeReconnection, ChargeOther:
		default:
			return errField("additional_charges.type", "is unknown")
		}
		if c.Amount.IsNegative() {
			return errField("additional_charges.amount", "must not be negative")
		}
	}
	for _, d := range p.Discounts {
		switch d.Type {
		case ReceiptDiscountPercentage:
			if !validPercent(d.Value) {
				return errField("discounts.value", "must be between 0 and 100")
			}
		case ReceiptDiscountFixed:
			if d.Value.IsNegative() {
				return errField("discounts.value", "must not be negative")
			}
		default:
			return errField("discounts.type", "is unknown")
		}
	}
	for _, t := range p.Taxes {
		if !validPercent(t.Rate) {
			return errField("taxes.rate", "must be between 0 and 100")
		}
	}
	p.Recalculate()
	if p.TaxableAmount.IsNegative() {
		return errField("discounts", "exceed the subtotal")
	}
	return nil
}

// ServiceIDs lists the services referenced by line items
func (p *Payment) ServiceIDs() []string {
	ids := make([]string, 0, len(p.Services))
	seen := make(map[string]bool, len(p.Services))
	for _, s := range p.Services {
		if !seen[s.ServiceID] {
			seen[s.ServiceID] = true
			ids = append(ids, s.ServiceID)
		}
	}
	return ids
}

// AmountPaid sums partial payments
func (p *Payment) AmountPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, pp := range p.PartialPayments {
		paid = paid.Add(pp.Amount)
	}
	return paid
}

// Balance is what remains to be paid
func (p *Payment) Balance() decimal.Decimal {
	b := p.TotalAmount.Sub(p.AmountPaid())
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// recordLateness sets the late sub-record against paidAt
func (p *Payment) recordLateness(paidAt time.Time) {
	p.LatePayment.IsLate = p.DueDate.Before(paidAt)
	if p.LatePayment.IsLate {
		p.LatePayment.DaysLate = ceilDays(paidAt.Sub(p.DueDate))
	} else {
		p.LatePayment.DaysLate = 0
	}
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func (p *Payment) AddPartialPayment(pp PartialPayment) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusPartial:
	default:
		return apperr.InvalidState("add_partial_payment", "receipt %s is %s", p.ReceiptNumber, p.Status)
	}
	if !pp.Amount.IsPositive() {
		return errField("amount", "must be positive")
	}
	if !pp.Amount.Equal(roundMoney(pp.Amount)) {
		return errField("amount", "has more than two decimal places")
	}
	if balance := p.Balance(); pp.Amount.GreaterThan(balance) {
		return errField("amount", "exceeds the outstanding balance of "+balance.StringFixed(2))
	}
	if pp.Method == "" {
		pp.Method = PaymentMethodCash
	}
	p.PartialPayments = append(p.PartialPayments, pp)

	if p.AmountPaid().GreaterThanOrEqual(p.TotalAmount) {
		paidAt := pp.PaidAt
		p.Status = PaymentStatusCompleted
		p.PaymentDate = &paidAt
		p.PaymentMethod = pp.Method
		p.TransactionID = pp.TransactionID
		p.recordLateness(paidAt)
	} else {
		p.Status = PaymentStatusPartial
	}
	return nil
}

// FullPayment describes settlement of the whole receipt
type FullPayment struct {
	Method        PaymentMethod
	TransactionID string
	BankName      string
	LateFeeRate   decimal.Decimal // percent of the taxable amount, applied only when late
	PaidAt        time.Time
}

func (p *Payment) ProcessFullPayment(fp FullPayment) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusPartial:
	default:
		return apperr.InvalidState("process_full_payment", "receipt %s is %s", p.ReceiptNumber, p.Status)
	}
	if fp.Method == "" {
		return errField("method", "is required")
	}
	p.recordLateness(fp.PaidAt)
	if p.LatePayment.IsLate && fp.LateFeeRate.IsPositive() {
		p.LatePayment.LateFeeRate = fp.LateFeeRate
		p.LatePayment.LateFeesApplied = percentOf(p.TaxableAmount, fp.LateFeeRate)
	}
	p.Recalculate()

	paidAt := fp.PaidAt
	p.Status = PaymentStatusCompleted
	p.PaymentDate = &paidAt
	p.PaymentMethod = fp.Method
	p.TransactionID = fp.TransactionID
	p.BankName = fp.BankName
	return nil
}

// ProcessRefund refunds amount, or the full total when amount is nil
func (p *Payment) ProcessRefund(amount *decimal.Decimal, reason, actorID string, now time.Time) error {
	if p.Status != PaymentStatusCompleted || p.Refund.IsRefunded {
		return apperr.InvalidState("process_refund", "receipt %s is %s", p.ReceiptNumber, p.Status)
	}
	if reason == "" {
		return errField("reason", "is required")
	}
	value := p.TotalAmount
	if amount != nil {
		value = *amount
	}
	if !value.IsPositive() || value.GreaterThan(p.TotalAmount) {
		return errField("amount", "must be positive and not exceed the total")
	}
	p.Refund = Refund{
		IsRefunded: true,
		Amount:     roundMoney(value),
		Reason:     reason,
		RefundedBy: actorID,
		RefundedAt: &now,
	}
	p.Status = PaymentStatusRefunded
	return nil
}

// Cancel voids a receipt nobody has paid against
func (p *Payment) Cancel(reason string) error {
	if p.Status != PaymentStatusPending {
		return apperr.InvalidState("cancel_receipt", "receipt %s is %s", p.ReceiptNumber, p.Status)
	}
	p.Status = PaymentStatusCancelled
	if reason != "" {
		p.Notes = appendLine(p.Notes, "cancelled: "+reason)
	}
	return nil
}

// MarkFailed records a failed settlement attempt
func (p *Payment) MarkFailed(reason string) error {
	if p.Status != PaymentStatusPending {
		return apperr.InvalidState("mark_failed", "receipt %s is %s", p.ReceiptNumber, p.Status)
	}
	p.Status = PaymentStatusFailed
	if reason != "" {
		p.Notes = appendLine(p.Notes, "failed: "+reason)
	}
	return nil
}

func (p *Payment) IsOverdue(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.DueDate)
}

func (p *Payment) DaysOverdue(now time.Time) int {
	if !p.IsOverdue(now) {
		return 0
	}
	return ceilDays(now.Sub(p.DueDate))
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
