package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents what a principal is allowed to do
type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleBilling    Role = "billing"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTechnician, RoleOperator, RoleSupervisor, RoleBilling, RoleAdmin:
		return true
	}
	return false
}

// User represents a login account (staff or client)
type User struct {
	ID        string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Username  string     `gorm:"column:username;uniqueIndex;size:100;not null" json:"username"`
	Password  string     `gorm:"column:password;size:255;not null" json:"-"`
	Email     string     `gorm:"column:email;size:255" json:"email"`
	FullName  string     `gorm:"column:full_name;size:255" json:"full_name"`
	Role      Role       `gorm:"column:role;size:20;not null" json:"role"`
	ClientID  *string    `gorm:"column:client_id;size:36;index" json:"client_id"` // set for client logins
	IsActive  bool       `gorm:"column:is_active;default:true" json:"is_active"`
	LastLogin *time.Time `gorm:"column:last_login" json:"last_login"`

	// 2FA fields
	TwoFactorEnabled bool   `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string `gorm:"column:two_factor_secret;size:255" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
