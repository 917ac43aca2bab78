package backend

import (
	"context"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// AuthResponse is the backend's token grant. Older endpoints answer with
// access_token instead of token.
type AuthResponse struct {
	Token       string      `json:"token"`
	AccessToken string      `json:"access_token"`
	User        domain.User `json:"user"`
}

// BearerToken returns whichever token field the backend filled.
func (a *AuthResponse) BearerToken() string {
	if a.Token != "" {
		return a.Token
	}
	return a.AccessToken
}

func (a *AuthResponse) validate() error {
	if a.BearerToken() == "" || a.User.ID == "" {
		return apperrors.Remote(http.StatusBadGateway, "BAD_RESPONSE", "backend granted a session without a token or user")
	}
	if a.User.Role == "" {
		a.User.Role = domain.RoleBuyer
	}
	return nil
}

// RegisterResponse acknowledges a registration and names the address the
// verification code was sent to.
type RegisterResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func (c *Client) grant(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges an identifier (username or email) and password for a token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*AuthResponse, error) {
	return c.grant(ctx, "/api/auth/login", creds)
}

// Register creates a buyer account; the backend then emails an OTP.
func (c *Client) Register(ctx context.Context, draft domain.RegistrationDraft) (*RegisterResponse, error) {
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}{draft.Username, draft.Email, draft.Phone, draft.Password}

	var out RegisterResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", "", body, &out); err != nil {
		return nil, err
	}
	if out.Email == "" {
		out.Email = draft.Email
	}
	return &out, nil
}

// VerifyOTP confirms the emailed code and grants a session.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*AuthResponse, error) {
	return c.grant(ctx, "/api/auth/verify-otp", map[string]string{"email": email, "code": code})
}

// GoogleAuth exchanges a Google ID credential for a session.
func (c *Client) GoogleAuth(ctx context.Context, credential string) (*AuthResponse, error) {
	return c.grant(ctx, "/api/auth/google", map[string]string{"credential": credential})
}

// OperatorLogin is the operator portal's login variant.
func (c *Client) OperatorLogin(ctx context.Context, username, password string) (*AuthResponse, error) {
	out, err := c.grant(ctx, "/api/login", map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	if out.User.Role == domain.RoleBuyer {
		out.User.Role = domain.RoleOperator
	}
	return out, nil
}
