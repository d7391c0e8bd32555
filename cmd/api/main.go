package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/backend/internal/authcache"
	"github.com/vigilnet/backend/internal/config"
	"github.com/vigilnet/backend/internal/database"
	"github.com/vigilnet/backend/internal/handlers"
	"github.com/vigilnet/backend/internal/logger"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/sequence"
	"github.com/vigilnet/backend/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(serve())
}

// serve returns the process exit code once its deferred cleanups, the log
// flush included, have run
func serve() int {
	// Load configuration
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("Failed to build logger: %v", err)
		return 1
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, rdb, err := database.Connect(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer database.Close(db, rdb)

	// Run migrations
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	configured := cfg.JWTSecret
	if cfg.JWTSecretGenerated {
		configured = ""
	}
	secret, err := database.EnsureJWTSecret(db, configured, cfg.JWTSecret, log)
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	counter, err := newCounter(ctx, cfg, db, rdb, log)
	if err != nil {
		return err
	}

	cache, err := authcache.New(cfg.PrincipalCacheSize, cfg.PrincipalCacheTTL, authcache.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("principal cache: %w", err)
	}
	sweeper, err := authcache.NewSweeper(cache, cfg.PrincipalCacheSweep, log)
	if err != nil {
		return fmt.Errorf("principal sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop(context.Background())

	deps := services.Deps{
		DB:       db,
		Log:      log,
		Numberer: sequence.NewNumberer(counter),
		Metrics:  m,
	}
	plans := services.NewPlanService(deps, database.NewCache(rdb))
	auth := services.NewAuthService(deps, cache, secret, time.Duration(cfg.JWTExpireHours)*time.Hour)
	if err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	app := handlers.NewApp(handlers.Services{
		Auth:          auth,
		Plans:         plans,
		Clients:       services.NewClientService(deps),
		Subscriptions: services.NewSubscriptionService(deps, plans),
		Receipts: services.NewReceiptService(deps, services.BillingSettings{
			DefaultTaxRate: cfg.DefaultTaxRate,
			LateFeeRate:    cfg.LateFeeRate,
			DueDays:        cfg.DueDays,
		}),
		Tickets:   services.NewTicketService(deps),
		Equipment: services.NewEquipmentService(deps),
	}, handlers.Options{
		Log:             log,
		Metrics:         m,
		Gatherer:        reg,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitReset,
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sweeper.Stop(shutdownCtx)
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Info("starting VigilNet API server", zap.String("addr", addr), zap.String("sequence_backend", cfg.SequenceBackend))
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// newCounter picks the numbering backend. Switching to Redis seeds it from
// the database counters first.
func newCounter(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.Logger) (sequence.Counter, error) {
	if cfg.SequenceBackend != config.SequenceBackendRedis {
		return sequence.NewDBCounter(db), nil
	}
	rc := sequence.NewRedisCounter(rdb, "vigilnet:seq:")
	if err := rc.SeedFromDB(ctx, db); err != nil {
		return nil, fmt.Errorf("seed redis sequences: %w", err)
	}
	log.Info("document numbers served from redis")
	return rc, nil
}
