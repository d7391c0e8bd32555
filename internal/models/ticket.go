package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusWaitingClient TicketStatus = "waiting_client"
	TicketStatusResolved      TicketStatus = "resolved"
	TicketStatusClosed        TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

type TicketCategory string

const (
	TicketCategoryTechnical    TicketCategory = "technical"
	TicketCategoryBilling      TicketCategory = "billing"
	TicketCategoryInstallation TicketCategory = "installation"
	TicketCategoryCamera       TicketCategory = "camera"
	TicketCategoryGeneral      TicketCategory = "general"
)

// TicketReply is an entry in a ticket thread
type TicketReply struct {
	Message    string    `json:"message"`
	AuthorID   string    `json:"author_id"`
	IsInternal bool      `json:"is_internal"` // hidden from clients
	CreatedAt  time.Time `json:"created_at"`
}

// Ticket represents a support ticket
type Ticket struct {
	ID              string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	TicketNumber    string         `gorm:"column:ticket_number;size:20;uniqueIndex;not null" json:"ticket_number"`
	ClientID        *string        `gorm:"column:client_id;size:36;index" json:"client_id"`
	ServiceID       *string        `gorm:"column:service_id;size:36" json:"service_id"`
	Subject         string         `gorm:"column:subject;size:255;not null" json:"subject"`
	Description     string         `gorm:"column:description;type:text;not null" json:"description"`
	Category        TicketCategory `gorm:"column:category;size:30" json:"category"`
	Priority        TicketPriority `gorm:"column:priority;size:20;default:medium" json:"priority"`
	Status          TicketStatus   `gorm:"column:status;size:20;default:open;index" json:"status"`
	AssignedTo      *string        `gorm:"column:assigned_to;size:36;index" json:"assigned_to"`
	ResolutionNotes string         `gorm:"column:resolution_notes;type:text" json:"resolution_notes"`
	Replies         []TicketReply  `gorm:"column:replies;serializer:json" json:"replies"`
	CreatedBy       string         `gorm:"column:created_by;size:36" json:"created_by"`
	ResolvedAt      *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
	ClosedAt        *time.Time     `gorm:"column:closed_at" json:"closed_at"`
	CreatedAt       time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Ticket) Validate() error {
	if t.Subject == "" {
		return errField("subject", "is required")
	}
	if t.Description == "" {
		return errField("description", "is required")
	}
	switch t.Category {
	case TicketCategoryTechnical, TicketCategoryBilling, TicketCategoryInstallation, TicketCategoryCamera, TicketCategoryGeneral:
	default:
		return errField("category", "is unknown")
	}
	switch t.Priority {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
	default:
		return errField("priority", "is unknown")
	}
	return nil
}

// ChangeStatus allows any transition between known states. Entering
// resolved stamps ResolvedAt, entering closed stamps ClosedAt.
func (t *Ticket) ChangeStatus(status TicketStatus, notes string, now time.Time) error {
	switch status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingClient, TicketStatusResolved, TicketStatusClosed:
	default:
		return errField("status", "is unknown")
	}
	if status == TicketStatusResolved && t.Status != TicketStatusResolved {
		t.ResolvedAt = &now
		if notes != "" {
			t.ResolutionNotes = notes
		}
	}
	if status == TicketStatusClosed && t.Status != TicketStatusClosed {
		t.ClosedAt = &now
	}
	t.Status = status
	return nil
}

func (t *Ticket) AddReply(message, authorID string, internal bool, now time.Time) error {
	if message == "" {
		return errField("message", "is required")
	}
	t.Replies = append(t.Replies, TicketReply{
		Message:    message,
		AuthorID:   authorID,
		IsInternal: internal,
		CreatedAt:  now,
	})
	return nil
}

// PublicReplies drops internal notes
func (t *Ticket) PublicReplies() []TicketReply {
	out := make([]TicketReply, 0, len(t.Replies))
	for _, r := range t.Replies {
		if !r.IsInternal {
			out = append(out, r)
		}
	}
	return out
}
