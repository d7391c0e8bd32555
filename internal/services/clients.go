package services

import (
	"context"

	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"go.uber.org/zap"
)

type ClientService struct {
	Deps
}

func NewClientService(deps Deps) *ClientService {
	return &ClientService{Deps: deps.withDefaults()}
}

// ClientPatch holds the editable client fields; nil means unchanged
type ClientPatch struct {
	Name         *string              `json:"name"`
	Email        *string              `json:"email"`
	Phone        *string              `json:"phone"`
	Address      *string              `json:"address"`
	CustomerType *models.CustomerType `json:"customer_type"`
	IsActive     *bool                `json:"is_active"`
	Notes        *string              `json:"notes"`
}

type ClientFilter struct {
	Search   string
	IsActive *bool
	Page
}

func (s *ClientService) Create(ctx context.Context, actor policy.Actor, c *models.Client) error {
	if err := s.Policy.Check(actor, policy.ActionClientManage); err != nil {
		return err
	}
	if c.CustomerType == "" {
		c.CustomerType = models.CustomerTypeResidential
	}
	c.IsActive = true
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.FromDB("create_client", err, "client document id")
	}
	s.Log.Info("client created", zap.String("client_id", c.ID))
	return nil
}

func (s *ClientService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Client, error) {
	if err := s.Policy.CheckOwner(actor, policy.ActionClientView, id); err != nil {
		return nil, err
	}
	var c models.Client
	if err := load(ctx, s.DB, "get_client", "client", id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns matching clients. Client actors only ever see themselves.
func (s *ClientService) List(ctx context.Context, actor policy.Actor, f ClientFilter) ([]models.Client, error) {
	if err := s.Policy.Check(actor, policy.ActionClientView); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.Client{})
	if actor.IsClient() {
		q = q.Where("id = ?", actor.ClientID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR email LIKE ? OR document_id LIKE ?", like, like, like)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	var clients []models.Client
	if err := f.Page.apply(q).Order("name").Find(&clients).Error; err != nil {
		return nil, apperr.FromDB("list_clients", err, "client")
	}
	return clients, nil
}

func (s *ClientService) Update(ctx context.Context, actor policy.Actor, id string, p ClientPatch) (*models.Client, error) {
	const op = "update_client"
	if err := s.Policy.Check(actor, policy.ActionClientManage); err != nil {
		return nil, err
	}
	var c models.Client
	if err := load(ctx, s.DB, op, "client", id, &c); err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.CustomerType != nil {
		c.CustomerType = *p.CustomerType
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(&c).Error; err != nil {
		return nil, apperr.FromDB(op, err, "client")
	}
	return &c, nil
}

// requireClient loads a client that new documents may reference
func requireClient(ctx context.Context, s Deps, op, id string) (*models.Client, error) {
	var c models.Client
	if err := load(ctx, s.DB, op, "client", id, &c); err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperr.InvalidState(op, "client %s is inactive", c.ID)
	}
	return &c, nil
}
