package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryAdminStore struct {
	mu    sync.Mutex
	next  int64
	users map[string]*AdminUser
}

func newMemoryAdminStore() *memoryAdminStore {
	return &memoryAdminStore{users: make(map[string]*AdminUser)}
}

func (s *memoryAdminStore) FindByEmail(ctx context.Context, email string) (*AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (s *memoryAdminStore) Create(ctx context.Context, user *AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return ErrDuplicateAdmin
	}
	s.next++
	user.ID = s.next
	copy := *user
	s.users[user.Email] = &copy
	return nil
}

func newLoginService(t *testing.T) *LoginService {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, err := NewLoginService(newMemoryAdminStore(), []byte("test-secret"), time.Hour,
		WithBcryptCost(bcrypt.MinCost),
		WithLoginClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return svc
}

func TestLoginService_CreateAndLogin(t *testing.T) {
	svc := newLoginService(t)
	ctx := context.Background()

	user, err := svc.CreateAdmin(ctx, " Clerk@Utility.example ", "correct-horse", RoleOperator)
	require.NoError(t, err)
	require.Equal(t, "clerk@utility.example", user.Email)
	require.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err = svc.CreateAdmin(ctx, "clerk@utility.example", "another-pass", RoleAdmin)
	require.ErrorIs(t, err, ErrDuplicateAdmin)

	token, err := svc.Login(ctx, "clerk@utility.example", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, RoleOperator, token.Role)
	require.Equal(t, "Bearer", token.TokenType)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), token.ExpiresAt)
}

func TestLoginService_RejectsBadCredentials(t *testing.T) {
	svc := newLoginService(t)
	ctx := context.Background()
	_, err := svc.CreateAdmin(ctx, "admin@utility.example", "s3cret-pass", RoleAdmin)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "admin@utility.example", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@utility.example", "s3cret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginService_CreateAdminValidation(t *testing.T) {
	svc := newLoginService(t)
	ctx := context.Background()
	_, err := svc.CreateAdmin(ctx, "not-an-email", "long-enough", RoleAdmin)
	require.Error(t, err)
	_, err = svc.CreateAdmin(ctx, "a@b.example", "short", RoleAdmin)
	require.Error(t, err)
	_, err = svc.CreateAdmin(ctx, "a@b.example", "long-enough", Role("owner"))
	require.Error(t, err)
}

func TestIssueJWT_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	signed, _, err := IssueJWT(secret, "admin@utility.example", RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	claims, err := ParseJWT(signed, secret)
	require.NoError(t, err)
	require.Equal(t, "admin@utility.example", claims.Subject)
	require.Equal(t, "admin", claims.Role)

	_, err = ParseJWT(signed, []byte("other-secret"))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginHandler(t *testing.T) {
	svc := newLoginService(t)
	_, err := svc.CreateAdmin(context.Background(), "admin@utility.example", "s3cret-pass", RoleAdmin)
	require.NoError(t, err)
	handler, err := NewLoginHandler(svc)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"admin@utility.example","password":"s3cret-pass"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"access_token"`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"admin@utility.example","password":"nope"}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
