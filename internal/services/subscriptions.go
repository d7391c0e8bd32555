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

// SubscriptionService runs the internet service lifecycle
type SubscriptionService struct {
	Deps
	plans *PlanService
}

func NewSubscriptionService(deps Deps, plans *PlanService) *SubscriptionService {
	return &SubscriptionService{Deps: deps.withDefaults(), plans: plans}
}

// SubscriptionInput carries the optional sub-records a caller may preset.
// The monthly fee snapshots the plan price unless MonthlyFee is set;
// billing.monthly_fee is derived and ignored on input.
type SubscriptionInput struct {
	ClientID     string               `json:"client_id"`
	PlanID       string               `json:"plan_id"`
	MonthlyFee   *decimal.Decimal     `json:"monthly_fee"`
	Installation *models.Installation `json:"installation"`
	Connection   *models.Connection   `json:"connection"`
	Contract     *models.Contract     `json:"contract"`
	Billing      *models.Billing      `json:"billing"`
}

type ServiceFilter struct {
	ClientID string
	Status   models.ServiceStatus
	Page
}

// UsageStatus summarizes current-month consumption against the plan cap
type UsageStatus struct {
	Month       string          `json:"month"`
	TotalGB     float64         `json:"total_gb"`
	LimitGB     float64         `json:"limit_gb"`
	Unlimited   bool            `json:"unlimited"`
	OverLimit   bool            `json:"over_limit"`
	NearLimit   bool            `json:"near_limit"`
	MonthlyCost decimal.Decimal `json:"monthly_cost"`
}

func (s *SubscriptionService) Create(ctx context.Context, actor policy.Actor, in SubscriptionInput) (*models.InternetService, error) {
	const op = "create_subscription"
	if err := s.Policy.Check(actor, policy.ActionServiceCreate); err != nil {
		return nil, err
	}
	client, err := requireClient(ctx, s.Deps, op, in.ClientID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, apperr.Validation(op, "plan %s is not offered", plan.Name)
	}

	svc := &models.InternetService{ClientID: client.ID, CreatedBy: actor.SubjectID}
	if in.Installation != nil {
		svc.Installation = *in.Installation
	}
	if in.Installation == nil || in.Installation.Address == "" {
		svc.Installation.Address = client.Address
	}
	if in.Connection != nil {
		svc.Connection = *in.Connection
	}
	if in.Contract != nil {
		svc.Contract = *in.Contract
	}
	if in.Billing != nil {
		svc.Billing = *in.Billing
	}
	if err := svc.ApplyPlanDefaults(plan, in.MonthlyFee, s.Now()); err != nil {
		return nil, err
	}

	err = sequence.Assign(ctx, sequence.DefaultAttempts, s.Numberer.ServiceCode, func(code string) error {
		svc.ServiceCode = code
		return apperr.FromDB(op, s.DB.WithContext(ctx).Create(svc).Error, "service code "+code)
	})
	if err != nil {
		return nil, err
	}
	svc.Plan = plan
	s.Metrics.ServiceTransition(string(svc.Status))
	s.Log.Info("subscription created",
		zap.String("service_code", svc.ServiceCode),
		zap.String("client_id", svc.ClientID),
		zap.String("plan_id", svc.PlanID))
	return svc, nil
}

func (s *SubscriptionService) Get(ctx context.Context, actor policy.Actor, id string) (*models.InternetService, error) {
	if err := s.Policy.Check(actor, policy.ActionServiceView); err != nil {
		return nil, err
	}
	var svc models.InternetService
	if err := load(ctx, s.DB, "get_subscription", "service", id, &svc); err != nil {
		return nil, err
	}
	if err := s.Policy.CheckOwner(actor, policy.ActionServiceView, svc.ClientID); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *SubscriptionService) List(ctx context.Context, actor policy.Actor, f ServiceFilter) ([]models.InternetService, error) {
	if err := s.Policy.Check(actor, policy.ActionServiceView); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.InternetService{})
	if actor.IsClient() {
		q = q.Where("client_id = ?", actor.ClientID)
	} else if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.InternetService
	if err := f.Page.apply(q).Order("service_code").Find(&out).Error; err != nil {
		return nil, apperr.FromDB("list_subscriptions", err, "service")
	}
	return out, nil
}

// mutate locks, changes and saves one service inside a transaction. The
// status change is reported only once the transaction has committed.
func (s *SubscriptionService) mutate(ctx context.Context, actor policy.Actor, action policy.Action, op, id string,
	fn func(tx *gorm.DB, svc *models.InternetService, now time.Time) error) (*models.InternetService, error) {
	if err := s.Policy.Check(actor, action); err != nil {
		return nil, err
	}
	var (
		svc  models.InternetService
		prev models.ServiceStatus
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(ctx, tx, op, "service", id, &svc); err != nil {
			return err
		}
		prev = svc.Status
		if err := fn(tx, &svc, s.Now()); err != nil {
			return err
		}
		return apperr.FromDB(op, tx.Save(&svc).Error, "service")
	})
	if err != nil {
		return nil, err
	}
	if svc.Status != prev {
		s.Metrics.ServiceTransition(string(svc.Status))
		s.Log.Info("service status changed",
			zap.String("service_code", svc.ServiceCode),
			zap.String("from", string(prev)),
			zap.String("to", string(svc.Status)),
			zap.String("actor", actor.SubjectID))
	}
	return &svc, nil
}

func (s *SubscriptionService) CompleteInstallation(ctx context.Context, actor policy.Actor, id string, r models.InstallationReport) (*models.InternetService, error) {
	if r.TechnicianID == "" && actor.Role == models.RoleTechnician {
		r.TechnicianID = actor.SubjectID
	}
	return s.mutate(ctx, actor, policy.ActionServiceInstall, "complete_installation", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.CompleteInstallation(r, now)
		})
}

func (s *SubscriptionService) Suspend(ctx context.Context, actor policy.Actor, id, reason, notes string) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceSuspend, "suspend", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.Suspend(reason, actor.SubjectID, notes, now)
		})
}

func (s *SubscriptionService) Reactivate(ctx context.Context, actor policy.Actor, id, notes string) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceReactivate, "reactivate", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.Reactivate(actor.SubjectID, notes, now)
		})
}

// ChangePlan moves the service to planID. A zero effective date means now.
func (s *SubscriptionService) ChangePlan(ctx context.Context, actor policy.Actor, id, planID, reason string, effective time.Time) (*models.InternetService, error) {
	if err := s.Policy.Check(actor, policy.ActionServiceChangePlan); err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, policy.ActionServiceChangePlan, "change_plan", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.ChangePlan(plan, actor.SubjectID, reason, effective, now)
		})
}

func (s *SubscriptionService) RecordDataUsage(ctx context.Context, actor policy.Actor, id string, downloadGB, uploadGB float64) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceRecordUsage, "record_data_usage", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.RecordDataUsage(downloadGB, uploadGB, now)
		})
}

func (s *SubscriptionService) AddDiscount(ctx context.Context, actor policy.Actor, id string, d models.Discount) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceDiscount, "add_discount", id,
		func(_ *gorm.DB, svc *models.InternetService, _ time.Time) error {
			return svc.AddDiscount(d, actor.SubjectID)
		})
}

func (s *SubscriptionService) UpdateSchedule(ctx context.Context, actor policy.Actor, id string, start *time.Time, billingDay *int) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceSchedule, "update_schedule", id,
		func(_ *gorm.DB, svc *models.InternetService, _ time.Time) error {
			return svc.UpdateSchedule(start, billingDay)
		})
}

func (s *SubscriptionService) AddNote(ctx context.Context, actor policy.Actor, id, text string) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceNote, "add_note", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.AddNote(text, actor.SubjectID, now)
		})
}

// MonitoringReport is an externally observed health sample
type MonitoringReport struct {
	UptimePercent float64           `json:"uptime_percent"`
	LatencyMs     float64           `json:"latency_ms"`
	SpeedTest     *models.SpeedTest `json:"speed_test"`
}

func (s *SubscriptionService) RecordMonitoring(ctx context.Context, actor policy.Actor, id string, r MonitoringReport) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceMonitor, "record_monitoring", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			if err := svc.RecordMonitoring(r.UptimePercent, r.LatencyMs, now); err != nil {
				return err
			}
			if r.SpeedTest != nil {
				st := *r.SpeedTest
				if st.TestedAt.IsZero() {
					st.TestedAt = now
				}
				svc.RecordSpeedTest(st)
			}
			return nil
		})
}

func (s *SubscriptionService) RequestCancellation(ctx context.Context, actor policy.Actor, id, reason string, effective time.Time) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceCancel, "request_cancellation", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.RequestCancellation(actor.SubjectID, reason, effective, now)
		})
}

func (s *SubscriptionService) Cancel(ctx context.Context, actor policy.Actor, id string) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceCancel, "cancel", id,
		func(_ *gorm.DB, svc *models.InternetService, now time.Time) error {
			return svc.Cancel(actor.SubjectID, now)
		})
}

func (s *SubscriptionService) SetMaintenance(ctx context.Context, actor policy.Actor, id string, on bool) (*models.InternetService, error) {
	return s.mutate(ctx, actor, policy.ActionServiceMaintenance, "set_maintenance", id,
		func(_ *gorm.DB, svc *models.InternetService, _ time.Time) error {
			return svc.SetMaintenance(on)
		})
}

// Usage reports the effective monthly cost and data cap state
func (s *SubscriptionService) Usage(ctx context.Context, actor policy.Actor, id string) (*UsageStatus, error) {
	svc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(ctx, svc.PlanID)
	if err != nil {
		return nil, err
	}
	return &UsageStatus{
		Month:       svc.DataUsage.Month,
		TotalGB:     svc.DataUsage.TotalGB,
		LimitGB:     plan.DataLimitGB,
		Unlimited:   plan.IsUnlimited(),
		OverLimit:   svc.IsOverDataLimit(plan),
		NearLimit:   svc.IsNearDataLimit(plan),
		MonthlyCost: svc.CurrentMonthlyCost(s.Now()),
	}, nil
}
