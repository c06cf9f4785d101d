package service

import (
	"context"

	"github.com/rryowa/medods_practice/internal/models"
)

// TokenRefresher performs the refresh network call.
type TokenRefresher interface {
	Refresh(ctx context.Context) (*models.TokenResponse, error)
}

// AuthEndpoints are the remote calls the session lifecycle makes.
type AuthEndpoints interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

// SessionTerminator is the single path that ends a session.
type SessionTerminator interface {
	Logout(ctx context.Context, reason models.LogoutReason)
}

// SessionRefresher repairs an expired session. staleToken is the token the
// caller last sent ("" if none).
type SessionRefresher interface {
	Refresh(ctx context.Context, staleToken string) (*models.Session, error)
}
