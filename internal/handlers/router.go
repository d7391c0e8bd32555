package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/services"
	"go.uber.org/zap"
)

// Services are the components the API exposes
type Services struct {
	Auth          *services.AuthService
	Plans         *services.PlanService
	Clients       *services.ClientService
	Subscriptions *services.SubscriptionService
	Receipts      *services.ReceiptService
	Tickets       *services.TicketService
	Equipment     *services.EquipmentService
}

type Options struct {
	Log             *zap.Logger
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer // served at /metrics when set
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewApp builds the fiber app with every route registered
func NewApp(svc Services, opts Options) *fiber.App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "VigilNet API",
		ServerHeader: "VigilNet",
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: ErrorHandler(log),
	})

	// Global middleware. The logger renders errors, so it wraps recover.
	app.Use(middleware.Logger(log, opts.Metrics))
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "vigilnet-api",
		})
	})
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandler := NewAuthHandler(svc.Auth, log)
	userHandler := NewUserHandler(svc.Auth)
	planHandler := NewPlanHandler(svc.Plans)
	clientHandler := NewClientHandler(svc.Clients)
	serviceHandler := NewServiceHandler(svc.Subscriptions)
	receiptHandler := NewReceiptHandler(svc.Receipts)
	ticketHandler := NewTicketHandler(svc.Tickets)
	equipmentHandler := NewEquipmentHandler(svc.Equipment)

	api := app.Group("/api")
	if opts.RateLimit > 0 {
		window := opts.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		api.Use(middleware.RateLimiter(opts.RateLimit, window))
	}

	// Public routes
	api.Post("/auth/login", authHandler.Login)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(svc.Auth), middleware.AuditLogger(log))

	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/refresh", authHandler.Refresh)
	protected.Put("/auth/password", authHandler.ChangePassword)
	protected.Post("/auth/2fa/setup", authHandler.Setup2FA)
	protected.Post("/auth/2fa/verify", authHandler.Verify2FA)
	protected.Post("/auth/2fa/disable", authHandler.Disable2FA)

	users := protected.Group("/users", middleware.RequireRoles(models.RoleAdmin))
	users.Get("", userHandler.List)
	users.Post("", userHandler.Create)
	users.Put("/:id", userHandler.Update)

	plans := protected.Group("/plans")
	plans.Get("", planHandler.List)
	plans.Get("/:id", planHandler.Get)
	plans.Post("", planHandler.Create)
	plans.Put("/:id", planHandler.Update)

	clients := protected.Group("/clients")
	clients.Get("", clientHandler.List)
	clients.Get("/:id", clientHandler.Get)
	clients.Post("", clientHandler.Create)
	clients.Put("/:id", clientHandler.Update)

	subs := protected.Group("/services")
	subs.Get("", serviceHandler.List)
	subs.Get("/:id", serviceHandler.Get)
	subs.Get("/:id/usage", serviceHandler.Usage)
	subs.Post("", serviceHandler.Create)
	subs.Post("/:id/install", serviceHandler.CompleteInstallation)
	subs.Post("/:id/suspend", serviceHandler.Suspend)
	subs.Post("/:id/reactivate", serviceHandler.Reactivate)
	subs.Post("/:id/change-plan", serviceHandler.ChangePlan)
	subs.Post("/:id/usage", serviceHandler.RecordUsage)
	subs.Post("/:id/discounts", serviceHandler.AddDiscount)
	subs.Put("/:id/schedule", serviceHandler.UpdateSchedule)
	subs.Post("/:id/notes", serviceHandler.AddNote)
	subs.Post("/:id/monitoring", serviceHandler.RecordMonitoring)
	subs.Post("/:id/cancellation", serviceHandler.RequestCancellation)
	subs.Post("/:id/cancel", serviceHandler.Cancel)
	subs.Post("/:id/maintenance", serviceHandler.SetMaintenance)

	receipts := protected.Group("/receipts")
	receipts.Get("", receiptHandler.List)
	receipts.Get("/overdue", receiptHandler.ListOverdue)
	receipts.Get("/:id", receiptHandler.Get)
	receipts.Post("", receiptHandler.Create)
	receipts.Post("/:id/payments", receiptHandler.AddPayment)
	receipts.Post("/:id/pay", receiptHandler.Pay)
	receipts.Post("/:id/refund", receiptHandler.Refund)
	receipts.Post("/:id/cancel", receiptHandler.Cancel)
	receipts.Post("/:id/fail", receiptHandler.MarkFailed)

	tickets := protected.Group("/tickets")
	tickets.Get("", ticketHandler.List)
	tickets.Get("/:id", ticketHandler.Get)
	tickets.Post("", ticketHandler.Create)
	tickets.Put("/:id/status", ticketHandler.UpdateStatus)
	tickets.Post("/:id/assign", ticketHandler.Assign)
	tickets.Post("/:id/reply", ticketHandler.Reply)

	equipment := protected.Group("/equipment")
	equipment.Get("", equipmentHandler.List)
	equipment.Get("/:id", equipmentHandler.Get)
	equipment.Post("", equipmentHandler.Register)
	equipment.Post("/:id/report", equipmentHandler.Report)
	equipment.Post("/:id/maintenance", equipmentHandler.SetMaintenance)

	return app
}
