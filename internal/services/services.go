// Package services implements the domain operations behind the HTTP API.
// Every state-changing operation checks the policy table once on entry.
package services

import (
	"context"
	"time"

	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/policy"
	"github.com/vigilnet/backend/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deps are the collaborators shared by every service
type Deps struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Policy   policy.Table
	Numberer *sequence.Numberer
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Policy == nil {
		d.Policy = policy.Default
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Page bounds list queries
type Page struct {
	Limit  int
	Offset int
}

const maxPageSize = 200

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// load fetches one row by id into dest
func load(ctx context.Context, db *gorm.DB, op, what, id string, dest interface{}) error {
	if id == "" {
		return apperr.Validation(op, "%s id is required", what)
	}
	return apperr.FromDB(op, db.WithContext(ctx).Where("id = ?", id).First(dest).Error, what)
}

// loadForUpdate is load holding a row lock until tx ends, so concurrent
// read-modify-save mutations of one document serialize
func loadForUpdate(ctx context.Context, tx *gorm.DB, op, what, id string, dest interface{}) error {
	return load(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), op, what, id, dest)
}
