package handlers

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/middleware"
	"github.com/vigilnet/backend/internal/services"
	"go.uber.org/zap"
)

const (
	maxLoginAttempts = 5
	loginBlockWindow = 15 * time.Minute
)

// loginAttempt tracks failed login attempts
type loginAttempt struct {
	count     int
	lastTry   time.Time
	blockedAt *time.Time
}

// loginGuard blocks an IP after repeated failed logins
type loginGuard struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempt
	now      func() time.Time
}

func newLoginGuard(now func() time.Time) *loginGuard {
	return &loginGuard{attempts: make(map[string]*loginAttempt), now: now}
}

// blocked reports whether ip is blocked and for how many more minutes
func (g *loginGuard) blocked(ip string) (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[ip]
	if !ok {
		return false, 0
	}
	now := g.now()
	if a.blockedAt != nil {
		if since := now.Sub(*a.blockedAt); since < loginBlockWindow {
			return true, int((loginBlockWindow - since).Minutes()) + 1
		}
		delete(g.attempts, ip)
		return false, 0
	}
	// Attempts expire after a quiet window
	if now.Sub(a.lastTry) > loginBlockWindow {
		delete(g.attempts, ip)
	}
	return false, 0
}

// fail records a failed attempt and returns the attempts left
func (g *loginGuard) fail(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[ip]
	if !ok {
		a = &loginAttempt{}
		g.attempts[ip] = a
	}
	now := g.now()
	a.count++
	a.lastTry = now
	if a.count >= maxLoginAttempts {
		a.blockedAt = &now
	}
	return maxLoginAttempts - a.count
}

func (g *loginGuard) clear(ip string) {
	g.mu.Lock()
	delete(g.attempts, ip)
	g.mu.Unlock()
}

type AuthHandler struct {
	auth  *services.AuthService
	guard *loginGuard
	log   *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, guard: newLoginGuard(time.Now), log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code"`
}

// Login authenticates a user and returns a JWT token
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	ip := c.IP()
	if blocked, minutes := h.guard.blocked(ip); blocked {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"message": "Too many failed login attempts. Try again in " + strconv.Itoa(minutes) + " minutes",
		})
	}

	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Username, req.Password, req.OTPCode)
	if errors.Is(err, services.ErrTwoFactorRequired) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success":      false,
			"message":      "Two-factor code required",
			"requires_2fa": true,
		})
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			left := h.guard.fail(ip)
			h.log.Warn("failed login", zap.String("ip", ip), zap.Int("attempts_left", left))
		}
		return err
	}
	h.guard.clear(ip)
	return success(c, res)
}

// Me returns the authenticated principal
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, _ := middleware.GetPrincipal(c)
	return success(c, p)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	p, _ := middleware.GetPrincipal(c)
	res, err := h.auth.Refresh(c.UserContext(), p)
	if err != nil {
		return err
	}
	return success(c, res)
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, _ := middleware.GetPrincipal(c)
	if err := h.auth.ChangePassword(c.UserContext(), p, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return message(c, "Password changed")
}
