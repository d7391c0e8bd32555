package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/authcache"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenIssuer = "vigilnet"

// TOTPIssuer names the account in authenticator apps
const TOTPIssuer = "VigilNet"

var (
	// ErrInvalidCredentials hides whether the username or password was wrong
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrTwoFactorRequired asks the caller to resubmit with a TOTP code
	ErrTwoFactorRequired = errors.New("two-factor code required")
	ErrInvalidToken      = errors.New("invalid or expired token")
)

// Claims are carried in issued tokens. Role is informational; the role used
// for authorization is always resolved from the principal.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies tokens and resolves principals
type AuthService struct {
	Deps
	cache  *authcache.Cache
	secret []byte
	ttl    time.Duration
}

func NewAuthService(deps Deps, cache *authcache.Cache, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{Deps: deps.withDefaults(), cache: cache, secret: []byte(secret), ttl: ttl}
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Login checks the password and, when enabled, the TOTP code
func (s *AuthService) Login(ctx context.Context, username, password, otpCode string) (*LoginResult, error) {
	const op = "login"
	if username == "" || password == "" {
		return nil, apperr.Validation(op, "username and password are required")
	}
	var u models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperr.Error{Kind: apperr.ErrAuthorization, Op: op, Err: ErrInvalidCredentials}
	}
	if err != nil {
		return nil, apperr.FromDB(op, err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		s.Log.Warn("login failed", zap.String("username", username))
		return nil, &apperr.Error{Kind: apperr.ErrAuthorization, Op: op, Err: ErrInvalidCredentials}
	}
	if !u.IsActive {
		return nil, apperr.Forbidden(op, "account is disabled")
	}
	if u.TwoFactorEnabled {
		if otpCode == "" {
			return nil, &apperr.Error{Kind: apperr.ErrAuthorization, Op: op, Err: ErrTwoFactorRequired}
		}
		if !totp.Validate(otpCode, u.TwoFactorSecret) {
			return nil, apperr.Forbidden(op, "invalid two-factor code")
		}
	}

	now := s.Now()
	u.LastLogin = &now
	if err := s.DB.WithContext(ctx).Model(&u).Update("last_login", now).Error; err != nil {
		s.Log.Warn("failed to record last login", zap.String("user_id", u.ID), zap.Error(err))
	}

	token, expires, err := s.issue(&u, now)
	if err != nil {
		return nil, err
	}
	s.cache.Insert(principalOf(&u))
	s.Log.Info("login", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return &LoginResult{Token: token, ExpiresAt: expires, User: &u}, nil
}

func (s *AuthService) issue(u *models.User, now time.Time) (string, time.Time, error) {
	expires := now.Add(s.ttl)
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Refresh issues a fresh token for an authenticated principal
func (s *AuthService) Refresh(ctx context.Context, p authcache.Principal) (*LoginResult, error) {
	u, err := s.activeUser(ctx, "refresh", p.SubjectID)
	if err != nil {
		return nil, err
	}
	token, expires, err := s.issue(u, s.Now())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: u}, nil
}

// Authenticate verifies a token and resolves its principal, hitting the
// database only on a cache miss.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (authcache.Principal, error) {
	const op = "authenticate"
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return authcache.Principal{}, &apperr.Error{Kind: apperr.ErrAuthorization, Op: op, Err: ErrInvalidToken}
	}

	if p, ok := s.cache.Lookup(claims.Subject); ok {
		return p, nil
	}
	u, err := s.activeUser(ctx, op, claims.Subject)
	if err != nil {
		return authcache.Principal{}, err
	}
	p := principalOf(u)
	s.cache.Insert(p)
	return p, nil
}

func (s *AuthService) activeUser(ctx context.Context, op, id string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbidden(op, "user no longer exists")
	}
	if err != nil {
		return nil, apperr.FromDB(op, err, "user")
	}
	if !u.IsActive {
		return nil, apperr.Forbidden(op, "account is disabled")
	}
	return &u, nil
}

func principalOf(u *models.User) authcache.Principal {
	p := authcache.Principal{SubjectID: u.ID, Username: u.Username, Role: u.Role}
	if u.ClientID != nil {
		p.ClientID = *u.ClientID
	}
	return p
}

// ActorOf converts a principal into a policy actor
func ActorOf(p authcache.Principal) policy.Actor {
	return policy.Actor{SubjectID: p.SubjectID, Role: p.Role, ClientID: p.ClientID}
}

type UserInput struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	ClientID *string     `json:"client_id"`
}

// UserPatch changes role, activation or password; nil means unchanged
type UserPatch struct {
	Role     *models.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
	Password *string      `json:"password"`
	ClientID *string      `json:"client_id"`
}

const minPasswordLength = 8

func (s *AuthService) CreateUser(ctx context.Context, actor policy.Actor, in UserInput) (*models.User, error) {
	const op = "create_user"
	if err := s.Policy.Check(actor, policy.ActionUserManage); err != nil {
		return nil, err
	}
	if in.Username == "" {
		return nil, apperr.Validation(op, "username is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation(op, "password must be at least %d characters", minPasswordLength)
	}
	u := &models.User{
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Role:     in.Role,
		ClientID: in.ClientID,
		IsActive: true,
	}
	if err := s.checkRoleBinding(ctx, op, u); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hash
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, apperr.FromDB(op, err, "username")
	}
	s.Log.Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// checkRoleBinding requires client logins to reference an existing client
// and staff logins to reference none.
func (s *AuthService) checkRoleBinding(ctx context.Context, op string, u *models.User) error {
	if !u.Role.Valid() {
		return apperr.Validation(op, "unknown role %q", u.Role)
	}
	if u.Role != models.RoleClient {
		u.ClientID = nil
		return nil
	}
	if u.ClientID == nil || *u.ClientID == "" {
		return apperr.Validation(op, "client logins need a client_id")
	}
	var c models.Client
	return load(ctx, s.DB, op, "client", *u.ClientID, &c)
}

// UpdateUser applies patch and drops the cached principal so the change
// takes effect on the next request.
func (s *AuthService) UpdateUser(ctx context.Context, actor policy.Actor, id string, patch UserPatch) (*models.User, error) {
	const op = "update_user"
	if err := s.Policy.Check(actor, policy.ActionUserManage); err != nil {
		return nil, err
	}
	var u models.User
	if err := load(ctx, s.DB, op, "user", id, &u); err != nil {
		return nil, err
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.ClientID != nil {
		u.ClientID = patch.ClientID
	}
	if err := s.checkRoleBinding(ctx, op, &u); err != nil {
		return nil, err
	}
	if patch.IsActive != nil {
		if !*patch.IsActive && u.ID == actor.SubjectID {
			return nil, apperr.InvalidState(op, "cannot deactivate your own account")
		}
		u.IsActive = *patch.IsActive
	}
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLength {
			return nil, apperr.Validation(op, "password must be at least %d characters", minPasswordLength)
		}
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		u.Password = hash
	}
	if err := s.DB.WithContext(ctx).Save(&u).Error; err != nil {
		return nil, apperr.FromDB(op, err, "user")
	}
	s.cache.Evict(u.ID)
	return &u, nil
}

// ChangePassword lets a principal replace its own password
func (s *AuthService) ChangePassword(ctx context.Context, p authcache.Principal, current, next string) error {
	const op = "change_password"
	u, err := s.activeUser(ctx, op, p.SubjectID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return apperr.Validation(op, "current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return apperr.Validation(op, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return apperr.FromDB(op, s.DB.WithContext(ctx).Model(u).Update("password", hash).Error, "user")
}

// TwoFactorSetup is returned when enrolling an authenticator
type TwoFactorSetup struct {
	Secret  string `json:"secret"`
	OTPAuth string `json:"otpauth"`
}

// SetupTwoFactor stores a fresh secret. It is not enforced until verified.
func (s *AuthService) SetupTwoFactor(ctx context.Context, p authcache.Principal) (*TwoFactorSetup, error) {
	const op = "setup_2fa"
	u, err := s.activeUser(ctx, op, p.SubjectID)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: TOTPIssuer, AccountName: u.Username})
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Model(u).Updates(map[string]interface{}{
		"two_factor_secret":  key.Secret(),
		"two_factor_enabled": false,
	}).Error
	if err != nil {
		return nil, apperr.FromDB(op, err, "user")
	}
	return &TwoFactorSetup{Secret: key.Secret(), OTPAuth: key.URL()}, nil
}

// VerifyTwoFactor enables 2FA once the first code checks out
func (s *AuthService) VerifyTwoFactor(ctx context.Context, p authcache.Principal, code string) error {
	const op = "verify_2fa"
	u, err := s.activeUser(ctx, op, p.SubjectID)
	if err != nil {
		return err
	}
	if u.TwoFactorSecret == "" {
		return apperr.InvalidState(op, "2FA not set up")
	}
	if !totp.Validate(code, u.TwoFactorSecret) {
		return apperr.Validation(op, "invalid code")
	}
	return apperr.FromDB(op, s.DB.WithContext(ctx).Model(u).Update("two_factor_enabled", true).Error, "user")
}

func (s *AuthService) DisableTwoFactor(ctx context.Context, p authcache.Principal, password string) error {
	const op = "disable_2fa"
	u, err := s.activeUser(ctx, op, p.SubjectID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return apperr.Validation(op, "password is incorrect")
	}
	return apperr.FromDB(op, s.DB.WithContext(ctx).Model(u).Updates(map[string]interface{}{
		"two_factor_secret":  "",
		"two_factor_enabled": false,
	}).Error, "user")
}

// EnsureAdmin creates the first admin account when no users exist
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{Username: username, Password: hash, FullName: "Administrator", Role: models.RoleAdmin, IsActive: true}
	if err := s.DB.WithContext(ctx).Create(admin).Error; err != nil {
		return err
	}
	s.Log.Warn("seeded initial admin account, change its password", zap.String("username", username))
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor policy.Actor, page Page) ([]models.User, error) {
	if err := s.Policy.Check(actor, policy.ActionUserManage); err != nil {
		return nil, err
	}
	var users []models.User
	if err := page.apply(s.DB.WithContext(ctx).Model(&models.User{})).Order("username").Find(&users).Error; err != nil {
		return nil, apperr.FromDB("list_users", err, "user")
	}
	return users, nil
}
