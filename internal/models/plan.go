package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerType tags plans and clients
type CustomerType string

const (
	CustomerTypeResidential CustomerType = "residential"
	CustomerTypeBusiness    CustomerType = "business"
	CustomerTypeEnterprise  CustomerType = "enterprise"
)

// Plan represents a catalog service tier
type Plan struct {
	ID               string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name             string          `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Description      string          `gorm:"column:description;type:text" json:"description"`
	DownloadSpeed    int             `gorm:"column:download_speed;not null" json:"download_speed"` // Mbps
	UploadSpeed      int             `gorm:"column:upload_speed;not null" json:"upload_speed"`     // Mbps
	DataLimitGB      float64         `gorm:"column:data_limit_gb;default:0" json:"data_limit_gb"`  // 0 = unlimited
	MonthlyPrice     decimal.Decimal `gorm:"column:monthly_price;type:decimal(15,2);not null" json:"monthly_price"`
	InstallationCost decimal.Decimal `gorm:"column:installation_cost;type:decimal(15,2);default:0" json:"installation_cost"`
	EquipmentCost    decimal.Decimal `gorm:"column:equipment_cost;type:decimal(15,2);default:0" json:"equipment_cost"`
	Features         []string        `gorm:"column:features;serializer:json" json:"features"`
	CustomerType     CustomerType    `gorm:"column:customer_type;size:20;default:residential" json:"customer_type"`
	ContractMonths   int             `gorm:"column:contract_months;default:12" json:"contract_months"`
	IsActive         bool            `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsUnlimited reports whether the plan has no monthly data cap
func (p *Plan) IsUnlimited() bool {
	return p.DataLimitGB <= 0
}

// Validate checks catalog fields before persistence
func (p *Plan) Validate() error {
	switch {
	case p.Name == "":
		return errField("name", "is required")
	case p.DownloadSpeed <= 0 || p.UploadSpeed <= 0:
		return errField("speed", "must be positive")
	case p.MonthlyPrice.IsNegative() || p.InstallationCost.IsNegative() || p.EquipmentCost.IsNegative():
		return errField("price", "must not be negative")
	case p.DataLimitGB < 0:
		return errField("data_limit_gb", "must not be negative")
	case p.ContractMonths < 0:
		return errField("contract_months", "must not be negative")
	}
	switch p.CustomerType {
	case "", CustomerTypeResidential, CustomerTypeBusiness, CustomerTypeEnterprise:
	default:
		return errField("customer_type", "is unknown")
	}
	return nil
}
