package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/authcache"
	"github.com/vigilnet/backend/internal/database"
	"github.com/vigilnet/backend/internal/metrics"
	"github.com/vigilnet/backend/internal/sequence"
	"github.com/vigilnet/backend/internal/services"
	"github.com/vigilnet/backend/internal/testutil"
	"go.uber.org/zap"
)

type server struct {
	t   *testing.T
	app *fiber.App
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	deps := services.Deps{
		DB:       db,
		Log:      zap.NewNop(),
		Numberer: sequence.NewNumberer(sequence.NewDBCounter(db)),
		Metrics:  m,
	}
	cache, err := authcache.New(64, time.Minute, authcache.WithMetrics(m))
	require.NoError(t, err)

	plans := services.NewPlanService(deps, database.NewCache(rdb))
	auth := services.NewAuthService(deps, cache, "handler-secret", time.Hour)
	require.NoError(t, auth.EnsureAdmin(context.Background(), "admin", "admin-password"))

	app := NewApp(Services{
		Auth:          auth,
		Plans:         plans,
		Clients:       services.NewClientService(deps),
		Subscriptions: services.NewSubscriptionService(deps, plans),
		Receipts:      services.NewReceiptService(deps, services.BillingSettings{DefaultTaxRate: decimal.NewFromInt(12)}),
		Tickets:       services.NewTicketService(deps),
		Equipment:     services.NewEquipmentService(deps),
	}, Options{Metrics: m, Gatherer: reg})
	return &server{t: t, app: app}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (s *server) call(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *server) login(username, password string) string {
	s.t.Helper()
	code, env := s.call("POST", "/api/auth/login", "", fiber.Map{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// staff creates a user through the API and logs in as it
func (s *server) staff(adminToken, username, role string, clientID *string) string {
	s.t.Helper()
	body := fiber.Map{"username": username, "password": "password-123", "role": role}
	if clientID != nil {
		body["client_id"] = *clientID
	}
	code, env := s.call("POST", "/api/users", adminToken, body)
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return s.login(username, "password-123")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	code, _ := s.call("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "vigilnet_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	code, env := s.call("GET", "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = s.call("GET", "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.call("POST", "/api/auth/login", "", fiber.Map{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "authorization", env.Error)

	token := s.login("admin", "admin-password")
	code, env = s.call("GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var me authcache.Principal
	decode(t, env, &me)
	assert.Equal(t, "admin", me.Username)

	code, _ = s.call("POST", "/api/auth/refresh", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestLoginLockout(t *testing.T) {
	s := newServer(t)
	for i := 0; i < maxLoginAttempts; i++ {
		code, _ := s.call("POST", "/api/auth/login", "", fiber.Map{"username": "admin", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, _ := s.call("POST", "/api/auth/login", "", fiber.Map{"username": "admin", "password": "admin-password"})
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin", "admin-password")
	operator := s.staff(admin, "op", "operator", nil)

	code, env := s.call("POST", "/api/plans", operator, fiber.Map{"name": "Basic", "download_speed": 50, "upload_speed": 10, "monthly_price": 30})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "authorization", env.Error)

	code, _ = s.call("GET", "/api/users", operator, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.call("GET", "/api/plans/missing", operator, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error)

	code, env = s.call("POST", "/api/plans", admin, fiber.Map{"name": "", "monthly_price": 30})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Error)

	req := httptest.NewRequest("POST", "/api/clients", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operator)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, _ = s.call("POST", "/api/clients", operator, fiber.Map{"name": "Ana", "document_id": "D1", "address": "Calle 1"})
	require.Equal(t, http.StatusCreated, code)
	code, env = s.call("POST", "/api/clients", operator, fiber.Map{"name": "Ana", "document_id": "D1", "address": "Calle 1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", env.Error)
}

func TestServiceAndReceiptThroughAPI(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin", "admin-password")
	operator := s.staff(admin, "op", "operator", nil)
	tech := s.staff(admin, "tech", "technician", nil)
	billing := s.staff(admin, "cashier", "billing", nil)

	var plan struct{ ID string }
	code, env := s.call("POST", "/api/plans", admin, fiber.Map{"name": "Basic", "download_speed": 50, "upload_speed": 10, "monthly_price": 30})
	require.Equal(t, http.StatusCreated, code, env.Message)
	decode(t, env, &plan)

	var client struct{ ID string }
	code, env = s.call("POST", "/api/clients", operator, fiber.Map{"name": "Ana", "document_id": "D1", "address": "Calle 1"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	decode(t, env, &client)

	var svc struct {
		ID          string `json:"id"`
		ServiceCode string `json:"service_code"`
		Status      string `json:"status"`
	}
	code, env = s.call("POST", "/api/services", operator, fiber.Map{"client_id": client.ID, "plan_id": plan.ID})
	require.Equal(t, http.StatusCreated, code, env.Message)
	decode(t, env, &svc)
	assert.Equal(t, "SRV00000001", svc.ServiceCode)
	assert.Equal(t, "pending_installation", svc.Status)

	code, env = s.call("POST", "/api/services/"+svc.ID+"/install", tech, fiber.Map{"ip_address": "10.0.0.9"})
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &svc)
	assert.Equal(t, "active", svc.Status)

	code, _ = s.call("POST", "/api/services/"+svc.ID+"/install", tech, fiber.Map{"ip_address": "10.0.0.9"})
	assert.Equal(t, http.StatusConflict, code, "already installed")

	code, env = s.call("POST", "/api/services/"+svc.ID+"/suspend", billing, fiber.Map{"reason": "non_payment"})
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &svc)
	assert.Equal(t, "suspended", svc.Status)

	code, _ = s.call("POST", "/api/services/"+svc.ID+"/reactivate", billing, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.call("GET", "/api/services/"+svc.ID+"/usage", operator, nil)
	require.Equal(t, http.StatusOK, code)
	var usage services.UsageStatus
	decode(t, env, &usage)
	assert.Equal(t, "30.00", usage.MonthlyCost.StringFixed(2))

	var receipt struct {
		ID            string          `json:"id"`
		ReceiptNumber string          `json:"receipt_number"`
		TotalAmount   decimal.Decimal `json:"total_amount"`
		Status        string          `json:"status"`
	}
	code, env = s.call("POST", "/api/receipts", billing, fiber.Map{
		"client_id": client.ID,
		"services":  []fiber.Map{{"service_id": svc.ID, "description": "month", "amount": 30}},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	decode(t, env, &receipt)
	assert.Equal(t, "33.60", receipt.TotalAmount.StringFixed(2), "default 12% tax")
	assert.True(t, strings.HasPrefix(receipt.ReceiptNumber, "REC"))

	code, env = s.call("POST", "/api/receipts/"+receipt.ID+"/pay", operator, fiber.Map{"method": "cash"})
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &receipt)
	assert.Equal(t, "completed", receipt.Status)

	code, _ = s.call("POST", "/api/receipts/"+receipt.ID+"/refund", billing, fiber.Map{"reason": "error"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.call("POST", "/api/receipts/"+receipt.ID+"/refund", admin, fiber.Map{"reason": "error"})
	assert.Equal(t, http.StatusOK, code)
}

func TestClientPortalScoping(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin", "admin-password")
	operator := s.staff(admin, "op", "operator", nil)

	var a, b struct{ ID string }
	_, env := s.call("POST", "/api/clients", operator, fiber.Map{"name": "Ana", "document_id": "A1", "address": "x"})
	decode(t, env, &a)
	_, env = s.call("POST", "/api/clients", operator, fiber.Map{"name": "Beto", "document_id": "B1", "address": "y"})
	decode(t, env, &b)

	portal := s.staff(admin, "ana", "client", &a.ID)

	code, _ := s.call("GET", "/api/clients/"+a.ID, portal, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.call("GET", "/api/clients/"+b.ID, portal, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.call("POST", "/api/tickets", portal, fiber.Map{"subject": "Slow", "description": "evenings"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var ticket struct {
		ID       string  `json:"id"`
		ClientID *string `json:"client_id"`
	}
	decode(t, env, &ticket)
	require.NotNil(t, ticket.ClientID)
	assert.Equal(t, a.ID, *ticket.ClientID)

	code, _ = s.call("PUT", "/api/tickets/"+ticket.ID+"/status", portal, fiber.Map{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.call("PUT", "/api/tickets/"+ticket.ID+"/status", operator, fiber.Map{"status": "in_progress"})
	assert.Equal(t, http.StatusOK, code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusOf(services.ErrInvalidToken))
	assert.Equal(t, http.StatusTeapot, statusOf(fiber.NewError(http.StatusTeapot, "tea")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.EOF))
}
