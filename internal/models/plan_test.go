package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/backend/internal/apperr"
)

func TestPlanValidate(t *testing.T) {
	assert.NoError(t, testPlan().Validate())

	cases := map[string]func(p *Plan){
		"name":          func(p *Plan) { p.Name = "" },
		"speed":         func(p *Plan) { p.UploadSpeed = 0 },
		"price":         func(p *Plan) { p.MonthlyPrice = amt("-1") },
		"data limit":    func(p *Plan) { p.DataLimitGB = -5 },
		"customer type": func(p *Plan) { p.CustomerType = "alien" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := testPlan()
			mutate(p)
			assert.True(t, errors.Is(p.Validate(), apperr.ErrValidation))
		})
	}
}

func TestRoundMoney(t *testing.T) {
	assertMoney(t, "13.20", percentOf(amt("110"), amt("12")))
	assertMoney(t, "1.01", roundMoney(amt("1.005")))
	assertMoney(t, "0.01", roundMoney(amt("0.005")))
	assertMoney(t, "-0.01", roundMoney(amt("-0.005")))
	assertMoney(t, "0.00", roundMoney(amt("0.0049")))
}
