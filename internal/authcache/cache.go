// Package authcache caches resolved principals for authenticated requests.
// Entries expire after a fixed TTL; expired entries are removed lazily on
// lookup and in bulk by Sweep.
package authcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/models"
)

// Principal is the identity a token resolves to
type Principal struct {
	SubjectID string      `json:"subject_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ClientID  string      `json:"client_id,omitempty"`
}

type entry struct {
	principal Principal
	expiresAt time.Time
}

// Cache is a bounded TTL cache keyed by subject id
type Cache struct {
	items   *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	mu sync.Mutex // serializes Sweep
}

// Option customizes a Cache
type Option func(*Cache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache holding at most size principals for ttl each
func New(size int, ttl time.Duration, opts ...Option) (*Cache, error) {
	items, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	c := &Cache{items: items, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup returns a live principal for subjectID
func (c *Cache) Lookup(subjectID string) (Principal, bool) {
	e, ok := c.items.Get(subjectID)
	if ok && c.now().After(e.expiresAt) {
		c.items.Remove(subjectID)
		ok = false
	}
	c.metrics.PrincipalLookup(ok)
	if !ok {
		return Principal{}, false
	}
	return e.principal, true
}

// Insert stores p for the cache TTL, replacing any previous entry
func (c *Cache) Insert(p Principal) {
	c.items.Add(p.SubjectID, entry{principal: p, expiresAt: c.now().Add(c.ttl)})
}

// Evict drops subjectID, e.g. after a role change or deactivation
func (c *Cache) Evict(subjectID string) {
	c.items.Remove(subjectID)
}

// Sweep removes every expired entry and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.items.Keys() {
		e, ok := c.items.Peek(key)
		if ok && now.After(e.expiresAt) {
			c.items.Remove(key)
			removed++
		}
	}
	c.metrics.PrincipalsEvicted(removed)
	return removed
}

// Purge empties the cache
func (c *Cache) Purge() {
	c.items.Purge()
}

func (c *Cache) Len() int {
	return c.items.Len()
}
