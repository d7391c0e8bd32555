// Package sequence hands out human-readable document numbers from atomic
// counters. Counters never go backwards and never repeat a value.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
	"gorm.io/gorm"
)

// Counter names
const (
	ServiceCounter = "service"
	TicketCounter  = "ticket"
	receiptPrefix  = "receipt:"
)

// Counter returns the next value of a named counter. Implementations must
// increment and return in one atomic step.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// DBCounter keeps counters in the document_sequences table
type DBCounter struct {
	db *gorm.DB
}

func NewDBCounter(db *gorm.DB) *DBCounter {
	return &DBCounter{db: db}
}

const upsertSQL = `
INSERT INTO document_sequences (name, value, updated_at) VALUES (?, 1, ?)
ON CONFLICT (name) DO UPDATE SET value = document_sequences.value + 1, updated_at = excluded.updated_at
RETURNING value`

func (c *DBCounter) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	if err := c.db.WithContext(ctx).Raw(upsertSQL, name, time.Now().UTC()).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("sequence %s: %w", name, err)
	}
	if value == 0 {
		return 0, fmt.Errorf("sequence %s: no value returned", name)
	}
	return value, nil
}

// RedisCounter keeps counters as Redis keys advanced with INCR
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

func (c *RedisCounter) Next(ctx context.Context, name string) (int64, error) {
	value, err := c.rdb.Incr(ctx, c.prefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence %s: %w", name, err)
	}
	return value, nil
}

// Seed raises a Redis counter to at least floor, e.g. after migrating from
// the database backend. Lower values are left alone.
func (c *RedisCounter) Seed(ctx context.Context, name string, floor int64) error {
	key := c.prefix + name
	return c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur >= floor {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, strconv.FormatInt(floor, 10), 0)
			return nil
		})
		return err
	}, key)
}

// SeedFromDB raises each Redis counter to the value the database backend
// last handed out.
func (c *RedisCounter) SeedFromDB(ctx context.Context, db *gorm.DB) error {
	var rows []models.DocumentSequence
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("load sequences: %w", err)
	}
	for _, r := range rows {
		if err := c.Seed(ctx, r.Name, r.Value); err != nil {
			return fmt.Errorf("seed %s: %w", r.Name, err)
		}
	}
	return nil
}

func FormatServiceCode(n int64) string {
	return fmt.Sprintf("SRV%08d", n)
}

func FormatReceiptNumber(year int, n int64) string {
	return fmt.Sprintf("REC%04d%06d", year, n)
}

func FormatTicketNumber(n int64) string {
	return fmt.Sprintf("TK%06d", n)
}

// Numberer formats counter values into document numbers
type Numberer struct {
	counter Counter
}

func NewNumberer(counter Counter) *Numberer {
	return &Numberer{counter: counter}
}

func (n *Numberer) ServiceCode(ctx context.Context) (string, error) {
	v, err := n.counter.Next(ctx, ServiceCounter)
	if err != nil {
		return "", err
	}
	return FormatServiceCode(v), nil
}

// ReceiptNumber draws from a counter scoped to the calendar year of at, so
// numbering restarts at 1 every January.
func (n *Numberer) ReceiptNumber(ctx context.Context, at time.Time) (string, error) {
	year := at.Year()
	v, err := n.counter.Next(ctx, receiptPrefix+strconv.Itoa(year))
	if err != nil {
		return "", err
	}
	return FormatReceiptNumber(year, v), nil
}

func (n *Numberer) TicketNumber(ctx context.Context) (string, error) {
	v, err := n.counter.Next(ctx, TicketCounter)
	if err != nil {
		return "", err
	}
	return FormatTicketNumber(v), nil
}

// DefaultAttempts bounds Assign retries
const DefaultAttempts = 3

// Assign draws a number and hands it to create. A Conflict from create
// (the number is already taken) draws a fresh number and tries again.
func Assign(ctx context.Context, attempts int, next func(context.Context) (string, error), create func(number string) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var number string
		number, err = next(ctx)
		if err != nil {
			return err
		}
		err = create(number)
		if err == nil || !errors.Is(err, apperr.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
