package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
	"github.com/rryowa/medods_practice/internal/util"
)

// AuthService moves the process between anonymous and authenticated.
// Logout is the only code path that clears the session.
type AuthService struct {
	endpoints     AuthEndpoints
	inspector     *TokenInspector
	store         storage.CredentialStore
	logoutTimeout time.Duration
	metrics       metrics.Recorder
	log           *zap.SugaredLogger
}

func NewAuthService(
	cfg *util.GatewayConfig,
	endpoints AuthEndpoints,
	inspector *TokenInspector,
	store storage.CredentialStore,
	rec metrics.Recorder,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		endpoints:     endpoints,
		inspector:     inspector,
		store:         store,
		logoutTimeout: cfg.RequestTimeout,
		metrics:       rec,
		log:           log,
	}
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	tokens, err := s.endpoints.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.establish(tokens, models.ChangeLogin)
}

// Register creates the account and signs the user in with the returned token.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	tokens, err := s.endpoints.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.establish(tokens, models.ChangeRegister)
}

// Logout clears the local session first and then tells the server. The
// server call is best-effort; its failure is only logged.
func (s *AuthService) Logout(ctx context.Context, reason models.LogoutReason) {
	previous := s.store.Read()
	s.store.Clear(reason.ChangeReason())
	s.metrics.RecordLogout(string(reason))

	var token, userID string
	if previous != nil {
		token = previous.AccessToken
		userID = previous.Identity.ID
	}
	s.log.Infow("Logged out", "userID", userID, "reason", reason)

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
	defer cancel()
	if err := s.endpoints.Logout(callCtx, token); err != nil {
		s.log.Warnw("Server logout failed", "userID", userID, "reason", reason, "error", err)
	}
}

func (s *AuthService) Current() *models.Session {
	return s.store.Read()
}

func (s *AuthService) establish(tokens *models.TokenResponse, reason models.ChangeReason) (*models.Session, error) {
	session, err := s.inspector.Decode(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decode %s token: %w", reason, err)
	}

	s.store.Write(session, reason)
	s.log.Infow("Session established", "userID", session.Identity.ID, "role", session.Identity.Role, "reason", reason)
	return session, nil
}
