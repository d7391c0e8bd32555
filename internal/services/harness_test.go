package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/database"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"github.com/vigilnet/backend/internal/sequence"
	"github.com/vigilnet/backend/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var (
	admin      = policy.Actor{SubjectID: "u-admin", Role: models.RoleAdmin}
	supervisor = policy.Actor{SubjectID: "u-super", Role: models.RoleSupervisor}
	operator   = policy.Actor{SubjectID: "u-op", Role: models.RoleOperator}
	billing    = policy.Actor{SubjectID: "u-billing", Role: models.RoleBilling}
	technician = policy.Actor{SubjectID: "u-tech", Role: models.RoleTechnician}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	clock   *clock
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
	deps    Deps

	plans     *PlanService
	clients   *ClientService
	subs      *SubscriptionService
	receipts  *ReceiptService
	tickets   *TicketService
	equipment *EquipmentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	core, logs := observer.New(zap.DebugLevel)
	clk := &clock{now: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	deps := Deps{
		DB:       db,
		Log:      zap.New(core),
		Policy:   policy.Default,
		Numberer: sequence.NewNumberer(sequence.NewDBCounter(db)),
		Metrics:  m,
		Now:      clk.Now,
	}
	h := &harness{t: t, ctx: context.Background(), db: db, clock: clk, logs: logs, metrics: m, deps: deps}
	h.plans = NewPlanService(deps, database.NewCache(rdb))
	h.clients = NewClientService(deps)
	h.subs = NewSubscriptionService(deps, h.plans)
	h.receipts = NewReceiptService(deps, BillingSettings{LateFeeRate: decimal.NewFromInt(5), DueDays: 30})
	h.tickets = NewTicketService(deps)
	h.equipment = NewEquipmentService(deps)
	return h
}

func (h *harness) plan(name string, price int64) *models.Plan {
	h.t.Helper()
	p := &models.Plan{
		Name: name, DownloadSpeed: 50, UploadSpeed: 10, DataLimitGB: 100,
		MonthlyPrice: decimal.NewFromInt(price), InstallationCost: decimal.NewFromInt(25),
	}
	require.NoError(h.t, h.plans.Create(h.ctx, admin, p))
	return p
}

func (h *harness) client(doc string) *models.Client {
	h.t.Helper()
	c := &models.Client{Name: "Client " + doc, DocumentID: doc, Address: "Av. Central 1"}
	require.NoError(h.t, h.clients.Create(h.ctx, operator, c))
	return c
}

func (h *harness) subscription(c *models.Client, p *models.Plan) *models.InternetService {
	h.t.Helper()
	svc, err := h.subs.Create(h.ctx, operator, SubscriptionInput{ClientID: c.ID, PlanID: p.ID})
	require.NoError(h.t, err)
	return svc
}

func (h *harness) activeSubscription(c *models.Client, p *models.Plan) *models.InternetService {
	h.t.Helper()
	svc := h.subscription(c, p)
	svc, err := h.subs.CompleteInstallation(h.ctx, technician, svc.ID, models.InstallationReport{IPAddress: "10.0.0.2"})
	require.NoError(h.t, err)
	return svc
}

func clientActor(c *models.Client) policy.Actor {
	return policy.Actor{SubjectID: "u-client-" + c.DocumentID, Role: models.RoleClient, ClientID: c.ID}
}

func amt(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}
