package database

import (
	"errors"

	"github.com/vigilnet/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jwtSecretKey = "jwt_secret"

// EnsureJWTSecret returns the signing secret tokens should use. An explicitly
// configured secret always wins. Otherwise the persisted secret is loaded,
// or generated is persisted so sessions survive restarts.
func EnsureJWTSecret(db *gorm.DB, configured, generated string, log *zap.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var pref models.SystemPreference
	err := db.Where("key = ?", jwtSecretKey).First(&pref).Error
	if err == nil && pref.Value != "" {
		log.Info("jwt secret loaded from database")
		return pref.Value, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	pref = models.SystemPreference{Key: jwtSecretKey, Value: generated, ValueType: "string"}
	if err := db.Create(&pref).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		// another instance won the race
		if err := db.Where("key = ?", jwtSecretKey).First(&pref).Error; err != nil {
			return "", err
		}
		return pref.Value, nil
	}

	log.Info("jwt secret generated and persisted")
	return generated, nil
}
