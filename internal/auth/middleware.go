package auth

import (
	"net/http"
	"strings"
)

// Middleware guards the admin API. Routes the policy maps to a role need a
// bearer token whose role is at least that role; everything else passes.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware builds a Middleware that verifies tokens signed with secret.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap returns next behind the token check. The caller's identity is put in
// the request context for audit.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.Policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}

		id, status := m.authorize(r, required)
		if status != http.StatusOK {
			http.Error(w, strings.ToLower(http.StatusText(status)), status)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id.Role, id.Subject)))
	})
}

// authorize maps a missing or invalid token to 401 and an insufficient role
// to 403.
func (m *Middleware) authorize(r *http.Request, required Role) (Identity, int) {
	claims, err := ParseJWT(bearerToken(r.Header.Get("Authorization")), m.Secret)
	if err != nil {
		return Identity{}, http.StatusUnauthorized
	}
	role, _ := NormalizeRole(claims.Role)
	if !RoleAtLeast(role, required) {
		return Identity{}, http.StatusForbidden
	}
	return Identity{Role: role, Subject: claims.Subject}, http.StatusOK
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
