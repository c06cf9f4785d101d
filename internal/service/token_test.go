package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenInspector_IsExpiringWithin(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	ti := NewTokenInspector(WithClock(func() time.Time { return now }))

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "expires in an hour", token: mintToken(t, "u1", now.Add(time.Hour)), want: false},
		{name: "expires in 61s", token: mintToken(t, "u1", now.Add(61*time.Second)), want: false},
		{name: "expires exactly at buffer", token: mintToken(t, "u1", now.Add(60*time.Second)), want: true},
		{name: "expires in 30s", token: mintToken(t, "u1", now.Add(30*time.Second)), want: true},
		{name: "already expired", token: mintToken(t, "u1", now.Add(-time.Minute)), want: true},
		{name: "garbage", token: "not-a-jwt", want: true},
		{name: "bad base64 payload", token: "eyJhbGciOiJIUzI1NiJ9.%%%.sig", want: true},
		{name: "empty", token: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ti.IsExpiringWithin(tt.token, 60*time.Second); got != tt.want {
				t.Errorf("IsExpiringWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenInspector_MissingExpIsExpired(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": "u1"}).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ti := NewTokenInspector()
	if !ti.IsExpiringWithin(token, time.Second) {
		t.Error("token without exp should count as expired")
	}
	if _, err := ti.Decode(token); !errors.Is(err, ErrTokenUndecodable) {
		t.Errorf("Decode err = %v, want ErrTokenUndecodable", err)
	}
}

func TestTokenInspector_IgnoresSignature(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}).SignedString([]byte("some-other-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if NewTokenInspector().IsExpiringWithin(signed, time.Minute) {
		t.Error("a token signed with an unknown key must still decode")
	}
}

func TestTokenInspector_Decode(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := mintToken(t, "42", exp)

	s, err := NewTokenInspector().Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Identity.ID != "42" || s.Identity.Email != "42@clinic.test" || s.Identity.Role != "doctor" {
		t.Errorf("Identity = %+v", s.Identity)
	}
	if s.AccessToken != token {
		t.Error("AccessToken not carried into the session")
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %s, want %s", s.ExpiresAt, exp)
	}
	if !s.IssuedAt.Equal(exp.Add(-15 * time.Minute)) {
		t.Errorf("IssuedAt = %s, want %s", s.IssuedAt, exp.Add(-15*time.Minute))
	}
}

func TestTokenInspector_DecodeFallsBackToSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	s, err := NewTokenInspector().Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Identity.ID != "7" {
		t.Errorf("Identity.ID = %q, want 7", s.Identity.ID)
	}
}

func TestTokenInspector_DecodeMalformed(t *testing.T) {
	if _, err := NewTokenInspector().Decode("a.b.c"); !errors.Is(err, ErrTokenUndecodable) {
		t.Errorf("Decode err = %v, want ErrTokenUndecodable", err)
	}
}
