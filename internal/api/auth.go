package api

import (
	"context"
	"net/http"

	"github.com/campuspay/student-portal/internal/model"
)

// LoginResponse is the login endpoint payload. Success requires the flag,
// both tokens, and a profile; anything less is treated as a failure by the
// session manager.
type LoginResponse struct {
	Success      bool           `json:"success"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	Data         *model.Student `json:"data"`
	Message      string         `json:"message"`
}

// CheckAuthResponse carries the rotated token pair and refreshed profile.
type CheckAuthResponse struct {
	User         *model.Student `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

// Login authenticates with email and password. The call itself is
// unauthenticated; 401 maps to AuthError (invalid credentials) and 429 to
// RateLimitError with the backend cooldown.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/students/login", nil, body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAuth verifies the persisted access token and rotates the pair.
func (c *Client) CheckAuth(ctx context.Context) (*CheckAuthResponse, error) {
	var out CheckAuthResponse
	if err := c.get(ctx, "/students/check-auth", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout is the best-effort server-side session teardown. Callers must
// treat every error as non-fatal: logout is local-state-authoritative.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/students/logout", nil, nil)
}
