package api

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/satishkumarchitti/AI-Chat-Bot/client/internal/types"
)

// Register creates an account and returns its first token.
func Register(ctx context.Context, rc *resty.Client, req types.RegisterRequest) (*types.AuthResponse, error) {
	return authenticate(ctx, rc, "register", "/auth/register", req)
}

// Login exchanges credentials for a token.
func Login(ctx context.Context, rc *resty.Client, req types.LoginRequest) (*types.AuthResponse, error) {
	return authenticate(ctx, rc, "login", "/auth/login", req)
}

func authenticate(ctx context.Context, rc *resty.Client, op, path string, body any) (*types.AuthResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := rc.R().SetContext(ctx).SetBody(body).Post(path)
	if err := check(ctx, op, resp, err); err != nil {
		return nil, err
	}
	var out types.AuthResponse
	if err := decode(op, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes token. The token is passed explicitly because the session
// may already have been cleared locally.
func Logout(ctx context.Context, rc *resty.Client, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := rc.R().SetContext(ctx).SetAuthToken(token).Post("/auth/logout")
	return check(ctx, "logout", resp, err)
}

// Profile returns the account behind the current token.
func Profile(ctx context.Context, rc *resty.Client, r Retry) (*types.User, error) {
	var u types.User
	if err := getJSON(ctx, rc, r, "profile", "/auth/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
