package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vigilnet/backend/internal/apperr"
	"gorm.io/gorm"
)

// ServiceStatus represents the lifecycle state of an internet service
type ServiceStatus string

const (
	ServiceStatusPendingInstallation ServiceStatus = "pending_installation"
	ServiceStatusActive              ServiceStatus = "active"
	ServiceStatusSuspended           ServiceStatus = "suspended"
	ServiceStatusCancelled           ServiceStatus = "cancelled"
	ServiceStatusPendingCancellation ServiceStatus = "pending_cancellation"
	ServiceStatusMaintenance         ServiceStatus = "maintenance"
)

// BillingCycle represents how often a service is billed
type BillingCycle string

const (
	BillingCycleMonthly    BillingCycle = "monthly"
	BillingCycleQuarterly  BillingCycle = "quarterly"
	BillingCycleSemiannual BillingCycle = "semiannual"
	BillingCycleAnnual     BillingCycle = "annual"
)

// ConnectionType represents the last-mile technology
type ConnectionType string

const (
	ConnectionFiber    ConnectionType = "fiber"
	ConnectionWireless ConnectionType = "wireless"
	ConnectionCable    ConnectionType = "cable"
	ConnectionDSL      ConnectionType = "dsl"
)

const defaultUsageWarningPercent = 80

// InstalledEquipment is a device left at the client premises
type InstalledEquipment struct {
	Type         string `json:"type"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	MACAddress   string `json:"mac_address,omitempty"`
}

type Installation struct {
	ScheduledDate      *time.Time           `json:"scheduled_date,omitempty"`
	CompletedDate      *time.Time           `json:"completed_date,omitempty"`
	TechnicianID       string               `json:"technician_id,omitempty"`
	EquipmentInstalled []InstalledEquipment `json:"equipment_installed"`
	Address            string               `json:"address,omitempty"`
	Cost               decimal.Decimal      `json:"cost"`
	Notes              string               `json:"notes,omitempty"`
	Photos             []string             `json:"photos,omitempty"`
	CustomerSignature  string               `json:"customer_signature,omitempty"`
}

type SpeedTest struct {
	DownloadMbps float64   `json:"download_mbps"`
	UploadMbps   float64   `json:"upload_mbps"`
	PingMs       float64   `json:"ping_ms"`
	TestedAt     time.Time `json:"tested_at"`
}

type Connection struct {
	IPAddress     string         `json:"ip_address,omitempty"`
	Type          ConnectionType `json:"type,omitempty"`
	LastSpeedTest *SpeedTest     `json:"last_speed_test,omitempty"`
}

type Contract struct {
	StartDate      time.Time `gorm:"column:start_date" json:"start_date"`
	EndDate        time.Time `gorm:"column:end_date" json:"end_date"`
	DurationMonths int       `gorm:"column:duration_months" json:"duration_months"`
	AutoRenewal    bool      `gorm:"column:auto_renewal" json:"auto_renewal"`
}

type Billing struct {
	MonthlyFee         decimal.Decimal `gorm:"column:monthly_fee;type:decimal(15,2)" json:"monthly_fee"`
	Cycle              BillingCycle    `gorm:"column:cycle;size:20" json:"cycle"`
	BillingDay         int             `gorm:"column:billing_day" json:"billing_day"`
	NextBillingDate    *time.Time      `gorm:"column:next_billing_date;index" json:"next_billing_date"`
	OutstandingBalance decimal.Decimal `gorm:"column:outstanding_balance;type:decimal(15,2)" json:"outstanding_balance"`
}

// PlanChange is an append-only record of a plan switch
type PlanChange struct {
	FromPlanID    string          `json:"from_plan_id"`
	ToPlanID      string          `json:"to_plan_id"`
	FromFee       decimal.Decimal `json:"from_fee"`
	ToFee         decimal.Decimal `json:"to_fee"`
	ChangedBy     string          `json:"changed_by"`
	Reason        string          `json:"reason,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	ChangedAt     time.Time       `json:"changed_at"`
}

// Suspension is an append-only record of a pause. Only the latest may be active.
type Suspension struct {
	Reason            string     `json:"reason"`
	SuspendedBy       string     `json:"suspended_by"`
	SuspendedAt       time.Time  `json:"suspended_at"`
	Notes             string     `json:"notes,omitempty"`
	IsActive          bool       `json:"is_active"`
	ReactivatedAt     *time.Time `json:"reactivated_at,omitempty"`
	ReactivatedBy     string     `json:"reactivated_by,omitempty"`
	ReactivationNotes string     `json:"reactivation_notes,omitempty"`
}

type MonthlyUsage struct {
	Month      string  `json:"month"` // YYYY-MM
	DownloadGB float64 `json:"download_gb"`
	UploadGB   float64 `json:"upload_gb"`
	TotalGB    float64 `json:"total_gb"`
}

type DataUsage struct {
	Month            string         `json:"month"`
	DownloadGB       float64        `json:"download_gb"`
	UploadGB         float64        `json:"upload_gb"`
	TotalGB          float64        `json:"total_gb"`
	LastUpdated      *time.Time     `json:"last_updated,omitempty"`
	WarningThreshold float64        `json:"warning_threshold"` // percent of the plan cap
	History          []MonthlyUsage `json:"history,omitempty"`
}

type Monitoring struct {
	UptimePercent float64    `json:"uptime_percent"`
	LatencyMs     float64    `json:"latency_ms"`
	LastPing      *time.Time `json:"last_ping,omitempty"`
}

type Note struct {
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Cancellation struct {
	RequestedAt   *time.Time `json:"requested_at,omitempty"`
	RequestedBy   string     `json:"requested_by,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	PriorStatus   string     `json:"prior_status,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy   string     `json:"cancelled_by,omitempty"`
}

// InternetService is a client's contracted subscription
type InternetService struct {
	ID          string        `gorm:"column:id;primaryKey;size:36" json:"id"`
	ClientID    string        `gorm:"column:client_id;size:36;not null;index" json:"client_id"`
	PlanID      string        `gorm:"column:plan_id;size:36;not null;index" json:"plan_id"`
	Plan        *Plan         `gorm:"-" json:"plan,omitempty"`
	ServiceCode string        `gorm:"column:service_code;size:20;uniqueIndex;not null" json:"service_code"`
	Status      ServiceStatus `gorm:"column:status;size:30;not null;index" json:"status"`

	Installation Installation `gorm:"column:installation;serializer:json" json:"installation"`
	Connection   Connection   `gorm:"column:connection;serializer:json" json:"connection"`
	Contract     Contract     `gorm:"embedded;embeddedPrefix:contract_" json:"contract"`
	Billing      Billing      `gorm:"embedded;embeddedPrefix:billing_" json:"billing"`

	Discounts   []Discount   `gorm:"column:discounts;serializer:json" json:"discounts"`
	PlanHistory []PlanChange `gorm:"column:plan_history;serializer:json" json:"plan_history"`
	Suspensions []Suspension `gorm:"column:suspensions;serializer:json" json:"suspensions"`
	DataUsage   DataUsage    `gorm:"column:data_usage;serializer:json" json:"data_usage"`
	Monitoring  Monitoring   `gorm:"column:monitoring;serializer:json" json:"monitoring"`
	Notes       []Note       `gorm:"column:notes;serializer:json" json:"notes"`

	Cancellation Cancellation `gorm:"column:cancellation;serializer:json" json:"cancellation"`

	CreatedBy string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (InternetService) TableName() string {
	return "internet_services"
}

func (s *InternetService) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ApplyPlanDefaults fills fields the caller left unset from the plan and
// derives contract end and next billing date. The monthly fee snapshots the
// plan price unless fee overrides it; zero is a valid override.
func (s *InternetService) ApplyPlanDefaults(plan *Plan, fee *decimal.Decimal, now time.Time) error {
	s.PlanID = plan.ID
	s.Status = ServiceStatusPendingInstallation

	s.Billing.MonthlyFee = plan.MonthlyPrice
	if fee != nil {
		s.Billing.MonthlyFee = roundMoney(*fee)
	}
	if s.Billing.Cycle == "" {
		s.Billing.Cycle = BillingCycleMonthly
	}
	if s.Billing.BillingDay == 0 {
		s.Billing.BillingDay = 1
	}
	if s.Installation.Cost.IsZero() {
		s.Installation.Cost = plan.InstallationCost
	}
	if s.Contract.StartDate.IsZero() {
		s.Contract.StartDate = now
	}
	if s.Contract.DurationMonths == 0 {
		s.Contract.DurationMonths = plan.ContractMonths
	}
	if s.DataUsage.WarningThreshold == 0 {
		s.DataUsage.WarningThreshold = defaultUsageWarningPercent
	}
	if s.DataUsage.Month == "" {
		s.DataUsage.Month = monthKey(now)
	}

	if err := s.validateSchedule(); err != nil {
		return err
	}
	if s.Billing.MonthlyFee.IsNegative() {
		return errField("billing.monthly_fee", "must not be negative")
	}
	s.recomputeSchedule()
	return nil
}

func (s *InternetService) validateSchedule() error {
	if s.Billing.BillingDay < 1 || s.Billing.BillingDay > 31 {
		return errField("billing.billing_day", "must be between 1 and 31")
	}
	if s.Contract.DurationMonths < 0 {
		return errField("contract.duration_months", "must not be negative")
	}
	return nil
}

func (s *InternetService) recomputeSchedule() {
	s.Contract.EndDate = s.Contract.StartDate.AddDate(0, s.Contract.DurationMonths, 0)
	next := NextBillingDate(s.Contract.StartDate, s.Billing.BillingDay)
	s.Billing.NextBillingDate = &next
}

// UpdateSchedule changes contract start and/or billing day and recomputes
// the derived dates.
func (s *InternetService) UpdateSchedule(start *time.Time, billingDay *int) error {
	if start == nil && billingDay == nil {
		return errField("schedule", "nothing to update")
	}
	prevStart, prevDay := s.Contract.StartDate, s.Billing.BillingDay
	if start != nil {
		s.Contract.StartDate = *start
	}
	if billingDay != nil {
		s.Billing.BillingDay = *billingDay
	}
	if err := s.validateSchedule(); err != nil {
		s.Contract.StartDate, s.Billing.BillingDay = prevStart, prevDay
		return err
	}
	s.recomputeSchedule()
	return nil
}

// NextBillingDate places billingDay in the month of start, clamped to the
// month's last day, and moves one month forward when that is not after start.
func NextBillingDate(start time.Time, billingDay int) time.Time {
	candidate := dayInMonth(start.Year(), start.Month(), billingDay, start)
	if !candidate.After(start) {
		next := start.AddDate(0, 0, 1-start.Day()).AddDate(0, 1, 0)
		candidate = dayInMonth(next.Year(), next.Month(), billingDay, start)
	}
	return candidate
}

func dayInMonth(year int, month time.Month, day int, clock time.Time) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, clock.Location()).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ActiveSuspension returns the open suspension event, if any
func (s *InternetService) ActiveSuspension() *Suspension {
	for i := range s.Suspensions {
		if s.Suspensions[i].IsActive {
			return &s.Suspensions[i]
		}
	}
	return nil
}

// InstallationReport is what a technician submits on completion
type InstallationReport struct {
	TechnicianID       string
	EquipmentInstalled []InstalledEquipment
	IPAddress          string
	Notes              string
	Photos             []string
	Signature          string
}

func (s *InternetService) CompleteInstallation(r InstallationReport, now time.Time) error {
	if s.Status != ServiceStatusPendingInstallation {
		return apperr.InvalidState("complete_installation", "service %s is %s, expected %s", s.ServiceCode, s.Status, ServiceStatusPendingInstallation)
	}
	s.Installation.CompletedDate = &now
	if r.TechnicianID != "" {
		s.Installation.TechnicianID = r.TechnicianID
	}
	s.Installation.EquipmentInstalled = append(s.Installation.EquipmentInstalled, r.EquipmentInstalled...)
	s.Installation.Notes = r.Notes
	s.Installation.Photos = append(s.Installation.Photos, r.Photos...)
	s.Installation.CustomerSignature = r.Signature
	if r.IPAddress != "" {
		s.Connection.IPAddress = r.IPAddress
	}
	s.Status = ServiceStatusActive
	return nil
}

func (s *InternetService) Suspend(reason, actorID, notes string, now time.Time) error {
	if s.Status == ServiceStatusSuspended || s.ActiveSuspension() != nil {
		return apperr.InvalidState("suspend", "service %s is already suspended", s.ServiceCode)
	}
	if s.Status == ServiceStatusCancelled {
		return apperr.InvalidState("suspend", "service %s is cancelled", s.ServiceCode)
	}
	if reason == "" {
		return errField("reason", "is required")
	}
	s.Suspensions = append(s.Suspensions, Suspension{
		Reason:      reason,
		SuspendedBy: actorID,
		SuspendedAt: now,
		Notes:       notes,
		IsActive:    true,
	})
	s.Status = ServiceStatusSuspended
	return nil
}

func (s *InternetService) Reactivate(actorID, notes string, now time.Time) error {
	if s.Status != ServiceStatusSuspended {
		return apperr.InvalidState("reactivate", "service %s is %s, not suspended", s.ServiceCode, s.Status)
	}
	if susp := s.ActiveSuspension(); susp != nil {
		susp.IsActive = false
		susp.ReactivatedAt = &now
		susp.ReactivatedBy = actorID
		susp.ReactivationNotes = notes
	}
	s.Status = ServiceStatusActive
	return nil
}

// ChangePlan switches the plan and re-snapshots the monthly fee
func (s *InternetService) ChangePlan(plan *Plan, actorID, reason string, effective, now time.Time) error {
	if s.Status == ServiceStatusCancelled {
		return apperr.InvalidState("change_plan", "service %s is cancelled", s.ServiceCode)
	}
	if plan.ID == s.PlanID {
		return errField("plan_id", "is already the current plan")
	}
	if !plan.IsActive {
		return errField("plan_id", "refers to an inactive plan")
	}
	if effective.IsZero() {
		effective = now
	}
	s.PlanHistory = append(s.PlanHistory, PlanChange{
		FromPlanID:    s.PlanID,
		ToPlanID:      plan.ID,
		FromFee:       s.Billing.MonthlyFee,
		ToFee:         plan.MonthlyPrice,
		ChangedBy:     actorID,
		Reason:        reason,
		EffectiveDate: effective,
		ChangedAt:     now,
	})
	s.PlanID = plan.ID
	s.Plan = plan
	s.Billing.MonthlyFee = plan.MonthlyPrice
	return nil
}

// RecordDataUsage accumulates traffic. A new calendar month moves the
// previous counters into history first.
func (s *InternetService) RecordDataUsage(downloadGB, uploadGB float64, now time.Time) error {
	if downloadGB < 0 || uploadGB < 0 {
		return errField("usage", "must not be negative")
	}
	month := monthKey(now)
	u := &s.DataUsage
	if u.Month != "" && u.Month != month {
		u.History = append(u.History, MonthlyUsage{
			Month:      u.Month,
			DownloadGB: u.DownloadGB,
			UploadGB:   u.UploadGB,
			TotalGB:    u.TotalGB,
		})
		u.DownloadGB, u.UploadGB, u.TotalGB = 0, 0, 0
	}
	u.Month = month
	u.DownloadGB += downloadGB
	u.UploadGB += uploadGB
	u.TotalGB = u.DownloadGB + u.UploadGB
	u.LastUpdated = &now
	return nil
}

// CurrentMonthlyCost applies every in-window active discount to the fee
// snapshot in list order. The result never goes below zero.
func (s *InternetService) CurrentMonthlyCost(now time.Time) decimal.Decimal {
	cost := s.Billing.MonthlyFee
	for _, d := range s.Discounts {
		if d.Applies(now) {
			cost = d.Apply(cost)
		}
	}
	if cost.IsNegative() {
		return decimal.Zero
	}
	return roundMoney(cost)
}

// IsOverDataLimit is false for unlimited plans
func (s *InternetService) IsOverDataLimit(plan *Plan) bool {
	if plan == nil || plan.IsUnlimited() {
		return false
	}
	return s.DataUsage.TotalGB > plan.DataLimitGB
}

// IsNearDataLimit reports usage at or above the warning threshold
func (s *InternetService) IsNearDataLimit(plan *Plan) bool {
	if plan == nil || plan.IsUnlimited() {
		return false
	}
	threshold := s.DataUsage.WarningThreshold
	if threshold <= 0 {
		threshold = defaultUsageWarningPercent
	}
	return s.DataUsage.TotalGB >= plan.DataLimitGB*threshold/100
}

func (s *InternetService) AddDiscount(d Discount, actorID string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if s.Status == ServiceStatusCancelled {
		return apperr.InvalidState("add_discount", "service %s is cancelled", s.ServiceCode)
	}
	d.AddedBy = actorID
	s.Discounts = append(s.Discounts, d)
	return nil
}

func (s *InternetService) AddNote(text, authorID string, now time.Time) error {
	if text == "" {
		return errField("note", "is required")
	}
	s.Notes = append(s.Notes, Note{Text: text, AuthorID: authorID, CreatedAt: now})
	return nil
}

func (s *InternetService) RecordMonitoring(uptimePercent, latencyMs float64, now time.Time) error {
	if uptimePercent < 0 || uptimePercent > 100 {
		return errField("uptime_percent", "must be between 0 and 100")
	}
	s.Monitoring.UptimePercent = uptimePercent
	s.Monitoring.LatencyMs = latencyMs
	s.Monitoring.LastPing = &now
	return nil
}

func (s *InternetService) RecordSpeedTest(t SpeedTest) {
	s.Connection.LastSpeedTest = &t
}

// RequestCancellation parks the service until Cancel finalizes it. Suspended
// services go straight to Cancel so the suspension record stays consistent.
func (s *InternetService) RequestCancellation(actorID, reason string, effective, now time.Time) error {
	switch s.Status {
	case ServiceStatusActive, ServiceStatusMaintenance:
	default:
		return apperr.InvalidState("request_cancellation", "service %s is %s", s.ServiceCode, s.Status)
	}
	if effective.IsZero() {
		effective = now
	}
	s.Cancellation = Cancellation{
		RequestedAt:   &now,
		RequestedBy:   actorID,
		Reason:        reason,
		EffectiveDate: &effective,
		PriorStatus:   string(s.Status),
	}
	s.Status = ServiceStatusPendingCancellation
	return nil
}

// Cancel is terminal. An open suspension is closed with it.
func (s *InternetService) Cancel(actorID string, now time.Time) error {
	if s.Status == ServiceStatusCancelled {
		return apperr.InvalidState("cancel", "service %s is already cancelled", s.ServiceCode)
	}
	if susp := s.ActiveSuspension(); susp != nil {
		susp.IsActive = false
		susp.ReactivatedAt = &now
		susp.ReactivatedBy = actorID
		susp.ReactivationNotes = "closed by cancellation"
	}
	s.Cancellation.CancelledAt = &now
	s.Cancellation.CancelledBy = actorID
	s.Status = ServiceStatusCancelled
	return nil
}

// SetMaintenance moves an active service into maintenance and back
func (s *InternetService) SetMaintenance(on bool) error {
	switch {
	case on && s.Status == ServiceStatusActive:
		s.Status = ServiceStatusMaintenance
	case !on && s.Status == ServiceStatusMaintenance:
		s.Status = ServiceStatusActive
	default:
		return apperr.InvalidState("maintenance", "service %s is %s", s.ServiceCode, s.Status)
	}
	return nil
}
