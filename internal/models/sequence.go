package models

import "time"

// DocumentSequence holds the last value handed out for one counter name
type DocumentSequence struct {
	Name      string    `gorm:"column:name;primaryKey;size:50" json:"name"`
	Value     int64     `gorm:"column:value;not null" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (DocumentSequence) TableName() string {
	return "document_sequences"
}
