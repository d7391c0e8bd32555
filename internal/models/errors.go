package models

import "github.com/vigilnet/backend/internal/apperr"

func errField(field, msg string) error {
	return apperr.Validation("validate", "%s %s", field, msg)
}
