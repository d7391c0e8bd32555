package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/database"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"go.uber.org/zap"
)

const defaultContractMonths = 12

// PlanService manages the plan catalog. The active catalog and single plans
// are cached in Redis and invalidated on every edit.
type PlanService struct {
	Deps
	cache *database.Cache
}

func NewPlanService(deps Deps, cache *database.Cache) *PlanService {
	return &PlanService{Deps: deps.withDefaults(), cache: cache}
}

// PlanPatch holds the editable plan fields; nil means unchanged
type PlanPatch struct {
	Name             *string              `json:"name"`
	Description      *string              `json:"description"`
	DownloadSpeed    *int                 `json:"download_speed"`
	UploadSpeed      *int                 `json:"upload_speed"`
	DataLimitGB      *float64             `json:"data_limit_gb"`
	MonthlyPrice     *decimal.Decimal     `json:"monthly_price"`
	InstallationCost *decimal.Decimal     `json:"installation_cost"`
	EquipmentCost    *decimal.Decimal     `json:"equipment_cost"`
	Features         []string             `json:"features"`
	CustomerType     *models.CustomerType `json:"customer_type"`
	ContractMonths   *int                 `json:"contract_months"`
	IsActive         *bool                `json:"is_active"`
}

func (p PlanPatch) apply(plan *models.Plan) {
	if p.Name != nil {
		plan.Name = *p.Name
	}
	if p.Description != nil {
		plan.Description = *p.Description
	}
	if p.DownloadSpeed != nil {
		plan.DownloadSpeed = *p.DownloadSpeed
	}
	if p.UploadSpeed != nil {
		plan.UploadSpeed = *p.UploadSpeed
	}
	if p.DataLimitGB != nil {
		plan.DataLimitGB = *p.DataLimitGB
	}
	if p.MonthlyPrice != nil {
		plan.MonthlyPrice = *p.MonthlyPrice
	}
	if p.InstallationCost != nil {
		plan.InstallationCost = *p.InstallationCost
	}
	if p.EquipmentCost != nil {
		plan.EquipmentCost = *p.EquipmentCost
	}
	if p.Features != nil {
		plan.Features = p.Features
	}
	if p.CustomerType != nil {
		plan.CustomerType = *p.CustomerType
	}
	if p.ContractMonths != nil {
		plan.ContractMonths = *p.ContractMonths
	}
	if p.IsActive != nil {
		plan.IsActive = *p.IsActive
	}
}

func (s *PlanService) Create(ctx context.Context, actor policy.Actor, plan *models.Plan) error {
	const op = "create_plan"
	if err := s.Policy.Check(actor, policy.ActionPlanManage); err != nil {
		return err
	}
	if plan.ContractMonths == 0 {
		plan.ContractMonths = defaultContractMonths
	}
	if plan.CustomerType == "" {
		plan.CustomerType = models.CustomerTypeResidential
	}
	plan.IsActive = true
	if err := plan.Validate(); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(plan).Error; err != nil {
		return apperr.FromDB(op, err, "plan name")
	}
	s.invalidate(ctx)
	s.Log.Info("plan created", zap.String("plan_id", plan.ID), zap.String("name", plan.Name))
	return nil
}

func (s *PlanService) Update(ctx context.Context, actor policy.Actor, id string, patch PlanPatch) (*models.Plan, error) {
	const op = "update_plan"
	if err := s.Policy.Check(actor, policy.ActionPlanManage); err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := load(ctx, s.DB, op, "plan", id, &plan); err != nil {
		return nil, err
	}
	patch.apply(&plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(&plan).Error; err != nil {
		return nil, apperr.FromDB(op, err, "plan name")
	}
	s.invalidate(ctx)
	s.Log.Info("plan updated", zap.String("plan_id", plan.ID), zap.Bool("active", plan.IsActive))
	return &plan, nil
}

// Get returns a plan by id, active or not
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	if err := s.cache.Get(ctx, database.CacheKeyPlan+id, &plan); err == nil {
		return &plan, nil
	} else if !errors.Is(err, database.ErrCacheMiss) {
		s.Log.Warn("plan cache read failed", zap.Error(err))
	}
	if err := load(ctx, s.DB, "get_plan", "plan", id, &plan); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, database.CacheKeyPlan+id, &plan, database.CacheTTLPlans); err != nil {
		s.Log.Warn("plan cache write failed", zap.Error(err))
	}
	return &plan, nil
}

// ListActive returns the public catalog ordered by price
func (s *PlanService) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.cache.Get(ctx, database.CacheKeyActivePlans, &plans); err == nil {
		return plans, nil
	} else if !errors.Is(err, database.ErrCacheMiss) {
		s.Log.Warn("plan cache read failed", zap.Error(err))
	}
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("monthly_price, name").Find(&plans).Error; err != nil {
		return nil, apperr.FromDB("list_plans", err, "plan")
	}
	if err := s.cache.Set(ctx, database.CacheKeyActivePlans, plans, database.CacheTTLPlans); err != nil {
		s.Log.Warn("plan cache write failed", zap.Error(err))
	}
	return plans, nil
}

// ListAll includes retired plans
func (s *PlanService) ListAll(ctx context.Context, actor policy.Actor) ([]models.Plan, error) {
	if err := s.Policy.Check(actor, policy.ActionPlanManage); err != nil {
		return nil, err
	}
	var plans []models.Plan
	if err := s.DB.WithContext(ctx).Order("name").Find(&plans).Error; err != nil {
		return nil, apperr.FromDB("list_plans", err, "plan")
	}
	return plans, nil
}

func (s *PlanService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePlans(ctx); err != nil {
		s.Log.Warn("plan cache invalidation failed", zap.Error(err))
	}
}
