package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// roundMoney rounds to cents, half away from zero
func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// percentOf is rate percent of base, rounded to cents
func percentOf(base, rate decimal.Decimal) decimal.Decimal {
	return roundMoney(base.Mul(rate).Div(hundred))
}

// validPercent reports whether rate lies in [0, 100]
func validPercent(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(hundred)
}
