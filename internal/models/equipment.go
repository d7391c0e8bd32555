package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/backend/internal/apperr"
	"gorm.io/gorm"
)

type EquipmentKind string

const (
	EquipmentCamera EquipmentKind = "camera"
	EquipmentRouter EquipmentKind = "router"
	EquipmentONU    EquipmentKind = "onu"
	EquipmentSwitch EquipmentKind = "switch"
	EquipmentNVR    EquipmentKind = "nvr"
)

type EquipmentStatus string

const (
	EquipmentOnline      EquipmentStatus = "online"
	EquipmentOffline     EquipmentStatus = "offline"
	EquipmentError       EquipmentStatus = "error"
	EquipmentMaintenance EquipmentStatus = "maintenance"
)

// Equipment represents a network device or camera at a client site
type Equipment struct {
	ID           string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	ClientID     string          `gorm:"column:client_id;size:36;not null;index" json:"client_id"`
	ServiceID    *string         `gorm:"column:service_id;size:36" json:"service_id"`
	Kind         EquipmentKind   `gorm:"column:kind;size:20;not null;index" json:"kind"`
	Name         string          `gorm:"column:name;size:100" json:"name"`
	Brand        string          `gorm:"column:brand;size:100" json:"brand"`
	Model        string          `gorm:"column:model;size:100" json:"model"`
	SerialNumber string          `gorm:"column:serial_number;size:100;uniqueIndex;not null" json:"serial_number"`
	MACAddress   string          `gorm:"column:mac_address;size:32" json:"mac_address"`
	IPAddress    string          `gorm:"column:ip_address;size:50" json:"ip_address"`
	Location     string          `gorm:"column:location;size:255" json:"location"`
	Firmware     string          `gorm:"column:firmware;size:50" json:"firmware"`
	Resolution   string          `gorm:"column:resolution;size:20" json:"resolution,omitempty"` // cameras
	IsRecording  bool            `gorm:"column:is_recording;default:false" json:"is_recording"`
	Status       EquipmentStatus `gorm:"column:status;size:20;default:offline;index" json:"status"`
	LastSeen     *time.Time      `gorm:"column:last_seen" json:"last_seen"`
	LastError    string          `gorm:"column:last_error;size:500" json:"last_error"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Equipment) TableName() string {
	return "equipment"
}

func (e *Equipment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = EquipmentOffline
	}
	return nil
}

func (e *Equipment) Validate() error {
	switch e.Kind {
	case EquipmentCamera, EquipmentRouter, EquipmentONU, EquipmentSwitch, EquipmentNVR:
	default:
		return errField("kind", "is unknown")
	}
	if e.SerialNumber == "" {
		return errField("serial_number", "is required")
	}
	if e.ClientID == "" {
		return errField("client_id", "is required")
	}
	return nil
}

// ReportConnectivity applies an externally observed check. Devices under
// maintenance ignore reports until released.
func (e *Equipment) ReportConnectivity(reachable bool, errMsg string, now time.Time) error {
	if e.Status == EquipmentMaintenance {
		return apperr.InvalidState("report_connectivity", "equipment %s is under maintenance", e.SerialNumber)
	}
	switch {
	case errMsg != "":
		e.Status = EquipmentError
		e.LastError = errMsg
	case reachable:
		e.Status = EquipmentOnline
		e.LastError = ""
	default:
		e.Status = EquipmentOffline
	}
	if reachable {
		e.LastSeen = &now
	}
	return nil
}

// SetMaintenance toggles maintenance; leaving it resets to offline until
// the next report.
func (e *Equipment) SetMaintenance(on bool) {
	if on {
		e.Status = EquipmentMaintenance
		return
	}
	if e.Status == EquipmentMaintenance {
		e.Status = EquipmentOffline
	}
}
