package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// LoginHandler serves POST /api/v1/auth/login.
type LoginHandler struct {
	service *LoginService
}

// NewLoginHandler constructs a handler.
func NewLoginHandler(service *LoginService) (*LoginHandler, error) {
	if service == nil {
		return nil, errors.New("login handler: nil service")
	}
	return &LoginHandler{service: service}, nil
}

// ServeHTTP handles login requests.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/auth/login" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(token)
}
