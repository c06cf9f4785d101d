package models

import (
	"net/http"
	"net/url"
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// TokenResponse is what the login, register and refresh endpoints return.
// The refresh credential travels in an HTTP-only cookie and is not part of it.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

type ErrorResponse struct {
	Reason string `json:"reason"`
}

type SessionResponse struct {
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionResponse(s *Session) SessionResponse {
	return SessionResponse{Identity: s.Identity, ExpiresAt: s.ExpiresAt}
}

// RequestSpec describes a domain call. Body is kept as bytes so the request
// can be rebuilt for the retry after a refresh.
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}
