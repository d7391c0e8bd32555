package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/apperr"
)

var t0 = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func testPlan() *Plan {
	return &Plan{
		ID:               "plan-basic",
		Name:             "Basic 50",
		DownloadSpeed:    50,
		UploadSpeed:      10,
		DataLimitGB:      100,
		MonthlyPrice:     amt("50"),
		InstallationCost: amt("25"),
		ContractMonths:   12,
		IsActive:         true,
	}
}

func newService(t *testing.T) *InternetService {
	t.Helper()
	s := &InternetService{ClientID: "client-1", ServiceCode: "SRV00000001"}
	require.NoError(t, s.ApplyPlanDefaults(testPlan(), nil, t0))
	return s
}

func TestApplyPlanDefaults(t *testing.T) {
	s := newService(t)

	assert.Equal(t, ServiceStatusPendingInstallation, s.Status)
	assertMoney(t, "50.00", s.Billing.MonthlyFee)
	assert.Equal(t, BillingCycleMonthly, s.Billing.Cycle)
	assert.Equal(t, 1, s.Billing.BillingDay)
	assertMoney(t, "25.00", s.Installation.Cost)
	assert.Equal(t, t0.AddDate(1, 0, 0), s.Contract.EndDate)
	require.NotNil(t, s.Billing.NextBillingDate)
	assert.Equal(t, time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), *s.Billing.NextBillingDate)
	assert.Equal(t, 80.0, s.DataUsage.WarningThreshold)
	assert.Equal(t, "2024-03", s.DataUsage.Month)
}

func TestApplyPlanDefaultsKeepsExplicitFee(t *testing.T) {
	s := &InternetService{Billing: Billing{BillingDay: 15}}
	fee := amt("42")
	require.NoError(t, s.ApplyPlanDefaults(testPlan(), &fee, t0))
	assertMoney(t, "42.00", s.Billing.MonthlyFee)
	assert.Equal(t, 15, s.Billing.BillingDay)
}

func TestApplyPlanDefaultsKeepsExplicitZeroFee(t *testing.T) {
	s := &InternetService{}
	courtesy := decimal.Zero
	require.NoError(t, s.ApplyPlanDefaults(testPlan(), &courtesy, t0))
	assertMoney(t, "0.00", s.Billing.MonthlyFee)
	assertMoney(t, "0.00", s.CurrentMonthlyCost(t0))
}

func TestApplyPlanDefaultsRejectsNegativeFee(t *testing.T) {
	s := &InternetService{}
	fee := amt("-1")
	assert.True(t, errors.Is(s.ApplyPlanDefaults(testPlan(), &fee, t0), apperr.ErrValidation))
}

func TestApplyPlanDefaultsRejectsBadBillingDay(t *testing.T) {
	s := &InternetService{Billing: Billing{BillingDay: 32}}
	err := s.ApplyPlanDefaults(testPlan(), nil, t0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestNextBillingDate(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		day   int
		want  time.Time
	}{
		{"day already passed", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 15, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"later this month", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 15, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"same day moves forward", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 15, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"clamped to leap february", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 31, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"clamped in next month", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 31, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"december rolls the year", time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), 5, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextBillingDate(tc.start, tc.day))
		})
	}
}

func TestUpdateSchedule(t *testing.T) {
	s := newService(t)
	day := 15
	start := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpdateSchedule(&start, &day))
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), *s.Billing.NextBillingDate)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), s.Contract.EndDate)

	bad := 0
	err := s.UpdateSchedule(nil, &bad)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, 15, s.Billing.BillingDay, "failed update leaves schedule untouched")

	assert.Error(t, s.UpdateSchedule(nil, nil))
}

func TestCompleteInstallation(t *testing.T) {
	s := newService(t)
	report := InstallationReport{
		TechnicianID:       "tech-1",
		EquipmentInstalled: []InstalledEquipment{{Type: "onu", SerialNumber: "ONU-1"}},
		IPAddress:          "10.0.0.7",
	}

	require.NoError(t, s.CompleteInstallation(report, t0))
	assert.Equal(t, ServiceStatusActive, s.Status)
	assert.Equal(t, "10.0.0.7", s.Connection.IPAddress)
	assert.Len(t, s.Installation.EquipmentInstalled, 1)
	require.NotNil(t, s.Installation.CompletedDate)

	err := s.CompleteInstallation(report, t0)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestSuspendReactivate(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.CompleteInstallation(InstallationReport{}, t0))

	require.NoError(t, s.Suspend("non-payment", "op-1", "", t0))
	assert.Equal(t, ServiceStatusSuspended, s.Status)
	require.NotNil(t, s.ActiveSuspension())

	err := s.Suspend("again", "op-1", "", t0)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	later := t0.Add(48 * time.Hour)
	require.NoError(t, s.Reactivate("op-2", "paid", later))
	assert.Equal(t, ServiceStatusActive, s.Status)
	require.Len(t, s.Suspensions, 1)
	assert.False(t, s.Suspensions[0].IsActive)
	require.NotNil(t, s.Suspensions[0].ReactivatedAt)
	assert.Equal(t, later, *s.Suspensions[0].ReactivatedAt)
	assert.Equal(t, "op-2", s.Suspensions[0].ReactivatedBy)
	assert.Nil(t, s.ActiveSuspension())

	err = s.Reactivate("op-2", "", later)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestSuspendRequiresReason(t *testing.T) {
	s := newService(t)
	err := s.Suspend("", "op-1", "", t0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, s.Suspensions)
}

func TestChangePlan(t *testing.T) {
	s := newService(t)
	premium := &Plan{ID: "plan-premium", Name: "Premium", DownloadSpeed: 300, UploadSpeed: 50, MonthlyPrice: amt("90"), IsActive: true}

	require.NoError(t, s.ChangePlan(premium, "op-1", "upgrade", time.Time{}, t0))
	assert.Equal(t, "plan-premium", s.PlanID)
	assertMoney(t, "90.00", s.Billing.MonthlyFee)
	require.Len(t, s.PlanHistory, 1)
	assert.Equal(t, "plan-basic", s.PlanHistory[0].FromPlanID)
	assertMoney(t, "50.00", s.PlanHistory[0].FromFee)
	assertMoney(t, "90.00", s.PlanHistory[0].ToFee)
	assert.Equal(t, t0, s.PlanHistory[0].EffectiveDate)

	assert.Error(t, s.ChangePlan(premium, "op-1", "", time.Time{}, t0), "same plan")

	retired := &Plan{ID: "plan-old", IsActive: false}
	assert.Error(t, s.ChangePlan(retired, "op-1", "", time.Time{}, t0))
}

func TestCurrentMonthlyCost(t *testing.T) {
	s := newService(t)
	window := func(d Discount) Discount {
		d.ValidFrom = t0.AddDate(0, -1, 0)
		d.ValidUntil = t0.AddDate(0, 1, 0)
		d.IsActive = true
		return d
	}

	assertMoney(t, "50.00", s.CurrentMonthlyCost(t0))

	require.NoError(t, s.AddDiscount(window(Discount{Type: DiscountPercentage, Value: amt("20")}), "op-1"))
	assertMoney(t, "40.00", s.CurrentMonthlyCost(t0))

	require.NoError(t, s.AddDiscount(window(Discount{Type: DiscountFixedAmount, Value: amt("5")}), "op-1"))
	assertMoney(t, "35.00", s.CurrentMonthlyCost(t0))

	require.NoError(t, s.AddDiscount(window(Discount{Type: DiscountFreeMonths, Value: amt("2")}), "op-1"))
	assertMoney(t, "35.00", s.CurrentMonthlyCost(t0))

	require.NoError(t, s.AddDiscount(window(Discount{Type: DiscountFixedAmount, Value: amt("100")}), "op-1"))
	assertMoney(t, "0.00", s.CurrentMonthlyCost(t0), "cost never negative")

	assertMoney(t, "50.00", s.CurrentMonthlyCost(t0.AddDate(0, 2, 0)), "expired discounts are ignored")
}

func TestPercentageDiscountRoundsToCents(t *testing.T) {
	s := newService(t)
	s.Billing.MonthlyFee = amt("10.05")
	require.NoError(t, s.AddDiscount(Discount{
		Type: DiscountPercentage, Value: amt("10"), IsActive: true,
		ValidFrom: t0, ValidUntil: t0.AddDate(0, 1, 0),
	}, "op-1"))

	assertMoney(t, "9.04", s.CurrentMonthlyCost(t0))
}

func TestDiscountWindowIsInclusive(t *testing.T) {
	d := Discount{Type: DiscountPercentage, Value: amt("10"), IsActive: true, ValidFrom: t0, ValidUntil: t0.Add(time.Hour)}
	assert.True(t, d.Applies(t0))
	assert.True(t, d.Applies(t0.Add(time.Hour)))
	assert.False(t, d.Applies(t0.Add(-time.Second)))

	d.IsActive = false
	assert.False(t, d.Applies(t0))
}

func TestDiscountValidate(t *testing.T) {
	assert.Error(t, Discount{Type: DiscountPercentage, Value: amt("120")}.Validate())
	assert.Error(t, Discount{Type: DiscountFixedAmount, Value: amt("-1")}.Validate())
	assert.Error(t, Discount{Type: "bogus"}.Validate())
	assert.Error(t, Discount{Type: DiscountFixedAmount, Value: amt("1"), ValidFrom: t0, ValidUntil: t0.Add(-time.Hour)}.Validate())
	assert.NoError(t, Discount{Type: DiscountFixedAmount, Value: amt("1"), ValidFrom: t0, ValidUntil: t0}.Validate())
}

func TestRecordDataUsageRollsMonth(t *testing.T) {
	s := newService(t)
	plan := testPlan()

	require.NoError(t, s.RecordDataUsage(60, 10, t0))
	assert.Equal(t, 70.0, s.DataUsage.TotalGB)
	assert.False(t, s.IsNearDataLimit(plan))

	require.NoError(t, s.RecordDataUsage(10, 0, t0))
	assert.True(t, s.IsNearDataLimit(plan))
	assert.False(t, s.IsOverDataLimit(plan))

	require.NoError(t, s.RecordDataUsage(25, 0, t0))
	assert.True(t, s.IsOverDataLimit(plan))

	april := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordDataUsage(1, 1, april))
	assert.Equal(t, "2024-04", s.DataUsage.Month)
	assert.Equal(t, 2.0, s.DataUsage.TotalGB)
	require.Len(t, s.DataUsage.History, 1)
	assert.Equal(t, "2024-03", s.DataUsage.History[0].Month)
	assert.Equal(t, 105.0, s.DataUsage.History[0].TotalGB)

	assert.Error(t, s.RecordDataUsage(-1, 0, april))
}

func TestUnlimitedPlanNeverOverLimit(t *testing.T) {
	s := newService(t)
	plan := testPlan()
	plan.DataLimitGB = 0
	require.NoError(t, s.RecordDataUsage(10000, 0, t0))
	assert.False(t, s.IsOverDataLimit(plan))
	assert.False(t, s.IsNearDataLimit(plan))
}

func TestCancellationFlow(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.CompleteInstallation(InstallationReport{}, t0))

	require.NoError(t, s.RequestCancellation("client-user", "moving", time.Time{}, t0))
	assert.Equal(t, ServiceStatusPendingCancellation, s.Status)
	assert.Equal(t, string(ServiceStatusActive), s.Cancellation.PriorStatus)

	require.NoError(t, s.Cancel("op-1", t0))
	assert.Equal(t, ServiceStatusCancelled, s.Status)

	assert.True(t, errors.Is(s.Cancel("op-1", t0), apperr.ErrInvalidState))
	assert.True(t, errors.Is(s.Suspend("x", "op", "", t0), apperr.ErrInvalidState))
}

func TestCancelClosesSuspension(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.CompleteInstallation(InstallationReport{}, t0))
	require.NoError(t, s.Suspend("fraud", "op-1", "", t0))

	assert.True(t, errors.Is(s.RequestCancellation("op-1", "", time.Time{}, t0), apperr.ErrInvalidState))

	require.NoError(t, s.Cancel("op-1", t0))
	assert.Nil(t, s.ActiveSuspension())
	assert.Equal(t, ServiceStatusCancelled, s.Status)
}

func TestSetMaintenance(t *testing.T) {
	s := newService(t)
	assert.Error(t, s.SetMaintenance(true), "pending installation")

	require.NoError(t, s.CompleteInstallation(InstallationReport{}, t0))
	require.NoError(t, s.SetMaintenance(true))
	assert.Equal(t, ServiceStatusMaintenance, s.Status)
	require.NoError(t, s.SetMaintenance(false))
	assert.Equal(t, ServiceStatusActive, s.Status)
}

func TestNotesAndMonitoring(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.AddNote("router replaced", "tech-1", t0))
	assert.Error(t, s.AddNote("", "tech-1", t0))
	assert.Len(t, s.Notes, 1)

	require.NoError(t, s.RecordMonitoring(99.5, 12, t0))
	assert.Error(t, s.RecordMonitoring(101, 12, t0))
	assert.Equal(t, 99.5, s.Monitoring.UptimePercent)

	s.RecordSpeedTest(SpeedTest{DownloadMbps: 48, UploadMbps: 9, TestedAt: t0})
	require.NotNil(t, s.Connection.LastSpeedTest)
}
