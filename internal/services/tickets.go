package services

import (
	"context"
	"time"

	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"github.com/vigilnet/backend/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TicketService struct {
	Deps
}

func NewTicketService(deps Deps) *TicketService {
	return &TicketService{Deps: deps.withDefaults()}
}

type TicketInput struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    models.TicketCategory `json:"category"`
	Priority    models.TicketPriority `json:"priority"`
	ClientID    *string               `json:"client_id"`
	ServiceID   *string               `json:"service_id"`
}

type TicketFilter struct {
	Status     models.TicketStatus
	ClientID   string
	AssignedTo string
	Page
}

func (s *TicketService) Create(ctx context.Context, actor policy.Actor, in TicketInput) (*models.Ticket, error) {
	const op = "create_ticket"
	if err := s.Policy.Check(actor, policy.ActionTicketCreate); err != nil {
		return nil, err
	}
	t := &models.Ticket{
		Subject:     in.Subject,
		Description: in.Description,
		Category:    in.Category,
		Priority:    in.Priority,
		ClientID:    in.ClientID,
		ServiceID:   in.ServiceID,
		Status:      models.TicketStatusOpen,
		CreatedBy:   actor.SubjectID,
	}
	if actor.IsClient() {
		own := actor.ClientID
		t.ClientID = &own
	}
	if t.Category == "" {
		t.Category = models.TicketCategoryGeneral
	}
	if t.Priority == "" {
		t.Priority = models.TicketPriorityMedium
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, op, t); err != nil {
		return nil, err
	}

	err := sequence.Assign(ctx, sequence.DefaultAttempts, s.Numberer.TicketNumber, func(number string) error {
		t.TicketNumber = number
		return apperr.FromDB(op, s.DB.WithContext(ctx).Create(t).Error, "ticket number "+number)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.TicketCreated(string(t.Category))
	s.Log.Info("ticket created",
		zap.String("ticket_number", t.TicketNumber),
		zap.String("category", string(t.Category)),
		zap.String("priority", string(t.Priority)))
	return t, nil
}

func (s *TicketService) checkRefs(ctx context.Context, op string, t *models.Ticket) error {
	if t.ClientID != nil {
		var c models.Client
		if err := load(ctx, s.DB, op, "client", *t.ClientID, &c); err != nil {
			return err
		}
	}
	if t.ServiceID != nil {
		var svc models.InternetService
		if err := load(ctx, s.DB, op, "service", *t.ServiceID, &svc); err != nil {
			return err
		}
		if t.ClientID != nil && svc.ClientID != *t.ClientID {
			return apperr.Validation(op, "service %s does not belong to the ticket client", svc.ServiceCode)
		}
		if t.ClientID == nil {
			owner := svc.ClientID
			t.ClientID = &owner
		}
	}
	return nil
}

// Get returns a ticket. Clients never see internal replies.
func (s *TicketService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Ticket, error) {
	if err := s.Policy.Check(actor, policy.ActionTicketView); err != nil {
		return nil, err
	}
	var t models.Ticket
	if err := load(ctx, s.DB, "get_ticket", "ticket", id, &t); err != nil {
		return nil, err
	}
	if err := s.checkTicketOwner(actor, policy.ActionTicketView, &t); err != nil {
		return nil, err
	}
	if actor.IsClient() {
		t.Replies = t.PublicReplies()
	}
	return &t, nil
}

func (s *TicketService) checkTicketOwner(actor policy.Actor, action policy.Action, t *models.Ticket) error {
	owner := ""
	if t.ClientID != nil {
		owner = *t.ClientID
	}
	return s.Policy.CheckOwner(actor, action, owner)
}

func (s *TicketService) List(ctx context.Context, actor policy.Actor, f TicketFilter) ([]models.Ticket, error) {
	if err := s.Policy.Check(actor, policy.ActionTicketView); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.Ticket{})
	if actor.IsClient() {
		q = q.Where("client_id = ?", actor.ClientID)
	} else if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to = ?", f.AssignedTo)
	}
	var out []models.Ticket
	if err := f.Page.apply(q).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromDB("list_tickets", err, "ticket")
	}
	if actor.IsClient() {
		for i := range out {
			out[i].Replies = out[i].PublicReplies()
		}
	}
	return out, nil
}

func (s *TicketService) mutate(ctx context.Context, actor policy.Actor, action policy.Action, op, id string,
	fn func(tx *gorm.DB, t *models.Ticket, now time.Time) error) (*models.Ticket, error) {
	if err := s.Policy.Check(actor, action); err != nil {
		return nil, err
	}
	var t models.Ticket
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadForUpdate(ctx, tx, op, "ticket", id, &t); err != nil {
			return err
		}
		if err := s.checkTicketOwner(actor, action, &t); err != nil {
			return err
		}
		if err := fn(tx, &t, s.Now()); err != nil {
			return err
		}
		return apperr.FromDB(op, tx.Save(&t).Error, "ticket")
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TicketService) ChangeStatus(ctx context.Context, actor policy.Actor, id string, status models.TicketStatus, notes string) (*models.Ticket, error) {
	t, err := s.mutate(ctx, actor, policy.ActionTicketUpdate, "change_ticket_status", id,
		func(_ *gorm.DB, t *models.Ticket, now time.Time) error {
			return t.ChangeStatus(status, notes, now)
		})
	if err != nil {
		return nil, err
	}
	s.Log.Info("ticket status changed", zap.String("ticket_number", t.TicketNumber), zap.String("status", string(t.Status)))
	return t, nil
}

// Assign hands the ticket to a staff user
func (s *TicketService) Assign(ctx context.Context, actor policy.Actor, id, assigneeID string) (*models.Ticket, error) {
	const op = "assign_ticket"
	return s.mutate(ctx, actor, policy.ActionTicketUpdate, op, id,
		func(tx *gorm.DB, t *models.Ticket, _ time.Time) error {
			var u models.User
			if err := load(ctx, tx, op, "assignee", assigneeID, &u); err != nil {
				return err
			}
			if u.Role == models.RoleClient || !u.IsActive {
				return apperr.Validation(op, "user %s cannot be assigned tickets", u.Username)
			}
			t.AssignedTo = &u.ID
			return nil
		})
}

// Reply appends to the thread. Client replies are always public.
func (s *TicketService) Reply(ctx context.Context, actor policy.Actor, id, message string, internal bool) (*models.Ticket, error) {
	if actor.IsClient() {
		internal = false
	}
	t, err := s.mutate(ctx, actor, policy.ActionTicketReply, "reply_ticket", id,
		func(_ *gorm.DB, t *models.Ticket, now time.Time) error {
			return t.AddReply(message, actor.SubjectID, internal, now)
		})
	if err != nil {
		return nil, err
	}
	if actor.IsClient() {
		t.Replies = t.PublicReplies()
	}
	return t, nil
}
