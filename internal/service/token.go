package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rryowa/medods_practice/internal/models"
)

type accessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenInspector decodes access tokens without verifying them. Signature
// trust belongs to the issuing server.
type TokenInspector struct {
	parser *jwt.Parser
	now    func() time.Time
}

type InspectorOption func(*TokenInspector)

func WithClock(now func() time.Time) InspectorOption {
	return func(ti *TokenInspector) { ti.now = now }
}

func NewTokenInspector(opts ...InspectorOption) *TokenInspector {
	ti := &TokenInspector{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti
}

// IsExpiringWithin reports whether token expires within buffer from now
// (an expiry exactly at the edge counts). An undecodable token or one without
// exp counts as expired.
func (ti *TokenInspector) IsExpiringWithin(token string, buffer time.Duration) bool {
	claims, err := ti.claims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(ti.now().Add(buffer))
}

// Decode builds a Session from the token's claims.
func (ti *TokenInspector) Decode(token string) (*models.Session, error) {
	claims, err := ti.claims(token)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrTokenUndecodable)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenUndecodable)
	}

	session := &models.Session{
		Identity: models.Identity{
			ID:    userID,
			Email: claims.Email,
			Role:  claims.Role,
		},
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}

func (ti *TokenInspector) claims(token string) (claims *accessClaims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("%w: %v", ErrTokenUndecodable, r)
		}
	}()

	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrTokenUndecodable, ErrEmptyAccessToken)
	}

	parsed, _, err := ti.parser.ParseUnverified(token, &accessClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenUndecodable, err)
	}

	c, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrTokenUndecodable, errors.New("unexpected claims type"))
	}
	return c, nil
}
