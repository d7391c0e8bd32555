package services

import (
	"context"

	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EquipmentService keeps the device and camera inventory
type EquipmentService struct {
	Deps
}

func NewEquipmentService(deps Deps) *EquipmentService {
	return &EquipmentService{Deps: deps.withDefaults()}
}

type EquipmentFilter struct {
	ClientID string
	Kind     models.EquipmentKind
	Status   models.EquipmentStatus
	Page
}

// ConnectivityReport is the result of an external reachability check
type ConnectivityReport struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error"`
}

func (s *EquipmentService) Register(ctx context.Context, actor policy.Actor, e *models.Equipment) error {
	const op = "register_equipment"
	if err := s.Policy.Check(actor, policy.ActionEquipmentManage); err != nil {
		return err
	}
	e.Status = models.EquipmentOffline
	e.LastSeen = nil
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := requireClient(ctx, s.Deps, op, e.ClientID); err != nil {
		return err
	}
	if e.ServiceID != nil {
		var svc models.InternetService
		if err := load(ctx, s.DB, op, "service", *e.ServiceID, &svc); err != nil {
			return err
		}
		if svc.ClientID != e.ClientID {
			return apperr.Validation(op, "service %s does not belong to client %s", svc.ServiceCode, e.ClientID)
		}
	}
	if err := s.DB.WithContext(ctx).Create(e).Error; err != nil {
		return apperr.FromDB(op, err, "equipment serial number")
	}
	s.Log.Info("equipment registered",
		zap.String("serial", e.SerialNumber),
		zap.String("kind", string(e.Kind)),
		zap.String("client_id", e.ClientID))
	return nil
}

func (s *EquipmentService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Equipment, error) {
	if err := s.Policy.Check(actor, policy.ActionEquipmentView); err != nil {
		return nil, err
	}
	var e models.Equipment
	if err := load(ctx, s.DB, "get_equipment", "equipment", id, &e); err != nil {
		return nil, err
	}
	if err := s.Policy.CheckOwner(actor, policy.ActionEquipmentView, e.ClientID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EquipmentService) List(ctx context.Context, actor policy.Actor, f EquipmentFilter) ([]models.Equipment, error) {
	if err := s.Policy.Check(actor, policy.ActionEquipmentView); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.Equipment{})
	if actor.IsClient() {
		q = q.Where("client_id = ?", actor.ClientID)
	} else if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.Equipment
	if err := f.Page.apply(q).Order("serial_number").Find(&out).Error; err != nil {
		return nil, apperr.FromDB("list_equipment", err, "equipment")
	}
	return out, nil
}

func (s *EquipmentService) mutate(ctx context.Context, actor policy.Actor, action policy.Action, op, id string,
	fn func(e *models.Equipment) error) (*models.Equipment, error) {
	if err := s.Policy.Check(actor, action); err != nil {
		return nil, err
	}
	var e models.Equipment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(ctx, tx, op, "equipment", id, &e); err != nil {
			return err
		}
		if err := fn(&e); err != nil {
			return err
		}
		return apperr.FromDB(op, tx.Save(&e).Error, "equipment")
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EquipmentService) ReportConnectivity(ctx context.Context, actor policy.Actor, id string, r ConnectivityReport) (*models.Equipment, error) {
	e, err := s.mutate(ctx, actor, policy.ActionEquipmentReport, "report_connectivity", id,
		func(e *models.Equipment) error {
			return e.ReportConnectivity(r.Reachable, r.Error, s.Now())
		})
	if err != nil {
		return nil, err
	}
	s.Metrics.EquipmentReported(string(e.Status))
	if e.Status == models.EquipmentError {
		s.Log.Warn("equipment reported error", zap.String("serial", e.SerialNumber), zap.String("error", e.LastError))
	}
	return e, nil
}

func (s *EquipmentService) SetMaintenance(ctx context.Context, actor policy.Actor, id string, on bool) (*models.Equipment, error) {
	return s.mutate(ctx, actor, policy.ActionEquipmentManage, "set_equipment_maintenance", id,
		func(e *models.Equipment) error {
			e.SetMaintenance(on)
			return nil
		})
}
