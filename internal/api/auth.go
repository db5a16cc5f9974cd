package api

import (
	"context"
	"net/http"
)

// AuthService handles credential exchange with the backend. The console
// never verifies passwords itself; it forwards them once and caches the
// resulting token.
type AuthService struct {
	c *Client
}

// Login exchanges credentials for a token and the authenticated user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	req := LoginRequest{Email: email, Password: password}
	if err := s.c.do(ctx, "auth.login", http.MethodPost, "/v1/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GuestLogin creates an ephemeral guest account and returns its token.
func (s *AuthService) GuestLogin(ctx context.Context) (*LoginResponse, error) {
	var out LoginResponse
	if err := s.c.do(ctx, "auth.guest", http.MethodPost, "/v1/auth/guest", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the token carried in ctx on the backend side.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.c.do(ctx, "auth.logout", http.MethodPost, "/v1/auth/logout", nil, nil, nil)
}

// Refresh exchanges the token carried in ctx for a fresh one.
func (s *AuthService) Refresh(ctx context.Context) (*LoginResponse, error) {
	var out LoginResponse
	if err := s.c.do(ctx, "auth.refresh", http.MethodPost, "/v1/auth/refresh", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user behind the token carried in ctx.
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.c.do(ctx, "auth.me", http.MethodGet, "/v1/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new account and logs it in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*LoginResponse, error) {
	req := struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}{email, password, displayName}

	var out LoginResponse
	if err := s.c.do(ctx, "auth.register", http.MethodPost, "/v1/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
