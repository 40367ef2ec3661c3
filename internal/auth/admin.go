package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminUser is a console operator allowed to sign in.
type AdminUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminStore persists admin users.
type AdminStore interface {
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	Create(ctx context.Context, user *AdminUser) error
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        Role      `json:"role"`
}

// LoginService authenticates admin users and issues tokens.
type LoginService struct {
	store  AdminStore
	secret []byte
	ttl    time.Duration
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

// LoginOption configures the login service.
type LoginOption func(*LoginService)

// WithBcryptCost overrides the bcrypt cost used for new passwords.
func WithBcryptCost(cost int) LoginOption {
	return func(s *LoginService) {
		if cost >= bcrypt.MinCost {
			s.cost = cost
		}
	}
}

// WithLoginLogger sets the logger.
func WithLoginLogger(logger *zap.Logger) LoginOption {
	return func(s *LoginService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoginClock overrides the clock.
func WithLoginClock(now func() time.Time) LoginOption {
	return func(s *LoginService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLoginService constructs a login service.
func NewLoginService(store AdminStore, secret []byte, ttl time.Duration, opts ...LoginOption) (*LoginService, error) {
	if store == nil {
		return nil, errors.New("login service: nil store")
	}
	if len(secret) == 0 {
		return nil, errors.New("login service: empty secret")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	s := &LoginService{
		store:  store,
		secret: secret,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login checks credentials and issues a token.
func (s *LoginService) Login(ctx context.Context, email, password string) (Token, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Token{}, ErrInvalidCredentials
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Token{}, err
	}
	if user == nil {
		s.logger.Info("login rejected", zap.String("email", email), zap.String("reason", "unknown user"))
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected", zap.String("email", email), zap.String("reason", "bad password"))
		return Token{}, ErrInvalidCredentials
	}
	role, ok := NormalizeRole(string(user.Role))
	if !ok {
		return Token{}, fmt.Errorf("auth: admin %d has invalid role %q", user.ID, user.Role)
	}
	signed, expiresAt, err := IssueJWT(s.secret, user.Email, role, s.ttl, s.now())
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("login accepted", zap.String("email", email), zap.String("role", string(role)))
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt, Role: role}, nil
}

// CreateAdmin hashes password and stores a new admin user.
func (s *LoginService) CreateAdmin(ctx context.Context, email, password string, role Role) (*AdminUser, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("auth: invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("auth: password must be at least 8 characters")
	}
	normalized, ok := NormalizeRole(string(role))
	if !ok {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}
	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateAdmin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &AdminUser{Email: email, PasswordHash: string(hash), Role: normalized, CreatedAt: s.now().UTC()}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
