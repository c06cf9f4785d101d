package util

import (
	"testing"
	"time"
)

func TestNewGatewayConfig_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.test/v1/")

	cfg := NewGatewayConfig()
	if got := cfg.BaseURL.String(); got != "https://api.example.test/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", got)
	}
	if cfg.LoginPath != "/auth/login" {
		t.Errorf("LoginPath = %q, want /auth/login", cfg.LoginPath)
	}
	if cfg.RefreshPath != "/auth/refresh" {
		t.Errorf("RefreshPath = %q, want /auth/refresh", cfg.RefreshPath)
	}
	if cfg.ExpiryBuffer != 60*time.Second {
		t.Errorf("ExpiryBuffer = %s, want 60s", cfg.ExpiryBuffer)
	}
	if cfg.ProactiveRefresh {
		t.Error("ProactiveRefresh should default to false")
	}
}

func TestNewGatewayConfig_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:9000")
	t.Setenv("REFRESH_PATH", "/token/refresh")
	t.Setenv("EXPIRY_BUFFER", "2m")
	t.Setenv("PROACTIVE_REFRESH", "true")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg := NewGatewayConfig()
	if cfg.RefreshPath != "/token/refresh" {
		t.Errorf("RefreshPath = %q, want /token/refresh", cfg.RefreshPath)
	}
	if cfg.ExpiryBuffer != 2*time.Minute {
		t.Errorf("ExpiryBuffer = %s, want 2m", cfg.ExpiryBuffer)
	}
	if !cfg.ProactiveRefresh {
		t.Error("ProactiveRefresh = false, want true")
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Errorf("RequestTimeout = %s, want default on invalid input", cfg.RequestTimeout)
	}
}

func TestNewRateLimiterConfig_InvalidLimitFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_LIMIT", "-3")

	cfg := NewRateLimiterConfig()
	if cfg.Limit != defaultRateLimit {
		t.Errorf("Limit = %d, want %d", cfg.Limit, defaultRateLimit)
	}
	if cfg.Interval != defaultRateInterval {
		t.Errorf("Interval = %s, want %s", cfg.Interval, defaultRateInterval)
	}
}
