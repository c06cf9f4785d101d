package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/util"
)

const (
	defaultHTTPStatusThreshold = 300
	maxErrorBodySize           = 1 << 16
)

// NewHTTPClient returns the client shared by the gateway and the auth
// endpoints. Its cookie jar carries the HTTP-only refresh cookie; nothing
// else in the process reads it.
func NewHTTPClient(cfg *util.GatewayConfig) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: cfg.RequestTimeout,
	}, nil
}

// ResolveURL joins path onto base and attaches query.
func ResolveURL(base *url.URL, path string, query url.Values) string {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String()
}

// AuthClient calls the fixed login, register, refresh and logout endpoints.
type AuthClient struct {
	client       *http.Client
	baseURL      *url.URL
	loginPath    string
	registerPath string
	refreshPath  string
	logoutPath   string
	log          *zap.SugaredLogger
}

func NewAuthClient(cfg *util.GatewayConfig, client *http.Client, log *zap.SugaredLogger) *AuthClient {
	return &AuthClient{
		client:       client,
		baseURL:      cfg.BaseURL,
		loginPath:    cfg.LoginPath,
		registerPath: cfg.RegisterPath,
		refreshPath:  cfg.RefreshPath,
		logoutPath:   cfg.LogoutPath,
		log:          log,
	}
}

func (c *AuthClient) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	return c.credentialCall(ctx, "login", c.loginPath, req)
}

func (c *AuthClient) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	return c.credentialCall(ctx, "register", c.registerPath, req)
}

// Refresh relies on the refresh cookie held by the client's jar.
func (c *AuthClient) Refresh(ctx context.Context) (*models.TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.refreshPath, nil, "")
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		reason := readReason(resp)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRefreshRejected, resp.StatusCode, reason)
	}

	return decodeTokenResponse(resp)
}

// Logout tells the server the session is over. accessToken may be empty.
func (c *AuthClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, http.MethodPost, c.logoutPath, nil, accessToken)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		return fmt.Errorf("logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *AuthClient) credentialCall(ctx context.Context, op, path string, payload any) (*models.TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		reason := readReason(resp)
		c.log.Debugw("Credentials rejected", "op", op, "status", resp.StatusCode, "reason", reason)
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidCredentials, reason)
	case resp.StatusCode >= defaultHTTPStatusThreshold:
		reason := readReason(resp)
		return nil, util.NewResponseError(resp.StatusCode, "%s: %s", op, reason)
	}

	return decodeTokenResponse(resp)
}

func (c *AuthClient) do(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, ResolveURL(c.baseURL, path, nil), reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set(models.MwContentTypeHeader, models.MwContentTypeJSON)
	}
	if accessToken != "" {
		req.Header.Set(models.MwAuthHeader, models.MwBearerPrefix+accessToken)
	}
	req.Header.Set(models.MwRequestIDHeader, uuid.NewString())

	return c.client.Do(req)
}

func decodeTokenResponse(resp *http.Response) (*models.TokenResponse, error) {
	var out models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %w", ErrTokenUndecodable, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: %w", ErrTokenUndecodable, ErrEmptyAccessToken)
	}
	return &out, nil
}

func readReason(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}

	var er models.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Reason != "" {
		return er.Reason
	}
	return strings.TrimSpace(string(raw))
}
