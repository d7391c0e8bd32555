package models

import (
	"gorm.io/gorm"
)

// All lists every persisted model
func All() []interface{} {
	return []interface{}{
		&Plan{},
		&Client{},
		&InternetService{},
		&Payment{},
		&Ticket{},
		&Equipment{},
		&User{},
		&DocumentSequence{},
		&SystemPreference{},
	}
}

// AutoMigrate creates or updates the schema for every model
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
