package authcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/models"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, size int, clock *fakeClock, opts ...Option) *Cache {
	t.Helper()
	c, err := New(size, time.Minute, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return c
}

func principal(id string) Principal {
	return Principal{SubjectID: id, Username: "user-" + id, Role: models.RoleOperator}
}

func TestLookupHitAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(t, 10, clock)

	c.Insert(principal("a"))
	got, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "user-a", got.Username)

	clock.Advance(61 * time.Second)
	_, ok = c.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	c := newTestCache(t, 10, clock, WithMetrics(m))

	c.Insert(principal("old-1"))
	c.Insert(principal("old-2"))
	clock.Advance(45 * time.Second)
	c.Insert(principal("fresh"))
	clock.Advance(30 * time.Second)

	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("fresh")
	assert.True(t, ok)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.PrincipalCacheEvictions))
}

func TestCacheIsBounded(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(t, 2, clock)

	c.Insert(principal("a"))
	c.Insert(principal("b"))
	c.Insert(principal("c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup("a")
	assert.False(t, ok, "least recently used entry is dropped")
}

func TestEvictAndPurge(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(t, 10, clock)

	c.Insert(principal("a"))
	c.Insert(principal("b"))
	c.Evict("a")
	_, ok := c.Lookup("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(0, time.Minute)
	assert.Error(t, err)
}

func TestSweeperStopPurges(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(t, 10, clock)
	c.Insert(principal("a"))

	s, err := NewSweeper(c, "@every 1h", zap.NewNop())
	require.NoError(t, err)
	s.Start()
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Equal(t, 0, c.Len())
}

func TestSweeperStopIsRepeatable(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(t, 10, clock)

	s, err := NewSweeper(c, "@every 1h", zap.NewNop())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	c.Insert(principal("late"))
	assert.NotPanics(t, func() { s.Stop(context.Background()) })
	assert.Equal(t, 0, c.Len(), "a second stop still purges")
}

func TestNewSweeperRejectsBadSpec(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	_, err := NewSweeper(newTestCache(t, 1, clock), "every now and then", zap.NewNop())
	assert.Error(t, err)
}
