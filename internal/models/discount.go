package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a discount changes a monthly cost
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountFreeMonths  DiscountType = "free_months"
)

// Discount is a subscription discount. Value is a percentage, a currency
// amount or a month count depending on Type.
type Discount struct {
	Type       DiscountType    `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Reason     string          `json:"reason,omitempty"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil time.Time       `json:"valid_until"`
	IsActive   bool            `json:"is_active"`
	AddedBy    string          `json:"added_by,omitempty"`
}

// Applies reports whether the discount is active and now falls inside its
// validity window (both ends inclusive).
func (d Discount) Applies(now time.Time) bool {
	return d.IsActive && !now.Before(d.ValidFrom) && !now.After(d.ValidUntil)
}

// Apply returns cost after this discount.
//
// free_months is recorded on the subscription but never reduces the monthly
// cost here; billing of free months is not modelled.
func (d Discount) Apply(cost decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DiscountPercentage:
		return cost.Sub(percentOf(cost, d.Value))
	case DiscountFixedAmount:
		return cost.Sub(d.Value)
	default:
		return cost
	}
}

func (d Discount) Validate() error {
	switch d.Type {
	case DiscountPercentage:
		if !validPercent(d.Value) {
			return errField("discount.value", "must be between 0 and 100")
		}
	case DiscountFixedAmount, DiscountFreeMonths:
		if d.Value.IsNegative() {
			return errField("discount.value", "must not be negative")
		}
	default:
		return errField("discount.type", "is unknown")
	}
	if d.ValidUntil.Before(d.ValidFrom) {
		return errField("discount.valid_until", "is before valid_from")
	}
	return nil
}
