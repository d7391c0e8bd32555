package authcache

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs Cache.Sweep on a cron schedule
type Sweeper struct {
	cache *Cache
	cron  *cron.Cron
	log   *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewSweeper schedules sweeps of cache. spec uses cron syntax or a
// descriptor such as "@every 1m".
func NewSweeper(cache *Cache, spec string, log *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{cache: cache, cron: cron.New(), log: log}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	if n := s.cache.Sweep(); n > 0 {
		s.log.Debug("principal cache swept", zap.Int("evicted", n), zap.Int("remaining", s.cache.Len()))
	}
}

// Start begins scheduled sweeps
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.Start()
	s.log.Info("principal cache sweeper started")
}

// Stop halts the schedule, waits for a running sweep and purges the cache
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		s.cache.Purge()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.cache.Purge()
	s.log.Info("principal cache sweeper stopped")
}
