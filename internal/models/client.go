package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client represents a customer account
type Client struct {
	ID           string       `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name         string       `gorm:"column:name;size:255;not null" json:"name"`
	Email        string       `gorm:"column:email;size:255;index" json:"email"`
	Phone        string       `gorm:"column:phone;size:50" json:"phone"`
	Address      string       `gorm:"column:address;size:500" json:"address"`
	DocumentID   string       `gorm:"column:document_id;size:50;uniqueIndex" json:"document_id"`
	CustomerType CustomerType `gorm:"column:customer_type;size:20;default:residential" json:"customer_type"`
	IsActive     bool         `gorm:"column:is_active;default:true" json:"is_active"`
	Notes        string       `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return errField("name", "is required")
	}
	if c.DocumentID == "" {
		return errField("document_id", "is required")
	}
	switch c.CustomerType {
	case "", CustomerTypeResidential, CustomerTypeBusiness, CustomerTypeEnterprise:
	default:
		return errField("customer_type", "is unknown")
	}
	return nil
}
