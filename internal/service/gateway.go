package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
	"github.com/rryowa/medods_practice/internal/util"
)

type attempt int

const (
	attemptFirst attempt = iota
	attemptRetry
)

func (a attempt) String() string {
	if a == attemptRetry {
		return "retry"
	}
	return "first"
}

// Gateway attaches the session's bearer token to domain requests and repairs
// the session once when the server answers 401.
type Gateway struct {
	client    *http.Client
	baseURL   *url.URL
	store     storage.SessionReader
	inspector *TokenInspector
	refresher SessionRefresher
	buffer    time.Duration
	proactive bool
	metrics   metrics.Recorder
	log       *zap.SugaredLogger
}

func NewGateway(
	cfg *util.GatewayConfig,
	client *http.Client,
	store storage.SessionReader,
	inspector *TokenInspector,
	refresher SessionRefresher,
	rec metrics.Recorder,
	log *zap.SugaredLogger,
) *Gateway {
	return &Gateway{
		client:    client,
		baseURL:   cfg.BaseURL,
		store:     store,
		inspector: inspector,
		refresher: refresher,
		buffer:    cfg.ExpiryBuffer,
		proactive: cfg.ProactiveRefresh,
		metrics:   rec,
		log:       log,
	}
}

// Dispatch performs an authenticated request. Only a 401 is intercepted:
// the session is refreshed once and the request retried once, and whatever
// the retry returns is handed back as-is. Other responses and transport
// errors are returned unchanged. A failed refresh returns an error matching
// ErrSessionExpired.
func (g *Gateway) Dispatch(ctx context.Context, spec models.RequestSpec) (*http.Response, error) {
	requestID := spec.Header.Get(models.MwRequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	token, refreshed, err := g.currentToken(ctx)
	if err != nil {
		g.recordFailure(err)
		return nil, err
	}

	resp, err := g.send(ctx, spec, token, requestID, attemptFirst)
	if err != nil {
		g.metrics.RecordRequest(metrics.OutcomeTransportError)
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || refreshed {
		g.recordResponse(resp)
		return resp, nil
	}

	drain(resp)
	g.log.Debugw("Request unauthorized, refreshing session", "requestID", requestID, "method", spec.Method, "path", spec.Path)

	session, err := g.refresher.Refresh(ctx, token)
	if err != nil {
		g.recordFailure(err)
		return nil, err
	}

	g.metrics.RecordRetry()
	resp, err = g.send(ctx, spec, session.AccessToken, requestID, attemptRetry)
	if err != nil {
		g.metrics.RecordRequest(metrics.OutcomeTransportError)
		return nil, err
	}
	g.recordResponse(resp)
	return resp, nil
}

// currentToken returns the token to attach. An expiring token is never
// sent: it is either dropped or, in proactive mode, refreshed first, which
// uses up the request's one refresh.
func (g *Gateway) currentToken(ctx context.Context) (token string, refreshed bool, err error) {
	session := g.store.Read()
	if session == nil {
		return "", false, nil
	}
	if !g.inspector.IsExpiringWithin(session.AccessToken, g.buffer) {
		return session.AccessToken, false, nil
	}

	if !g.proactive {
		g.log.Debugw("Access token expiring, sending unauthenticated", "userID", session.Identity.ID, "expiresAt", session.ExpiresAt)
		return "", false, nil
	}

	fresh, err := g.refresher.Refresh(ctx, session.AccessToken)
	if err != nil {
		return "", false, err
	}
	return fresh.AccessToken, true, nil
}

func (g *Gateway) send(ctx context.Context, spec models.RequestSpec, token, requestID string, a attempt) (*http.Response, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, ResolveURL(g.baseURL, spec.Path, spec.Query), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if spec.Header != nil {
		req.Header = spec.Header.Clone()
	}
	req.Header.Del(models.MwAuthHeader)
	if token != "" {
		req.Header.Set(models.MwAuthHeader, models.MwBearerPrefix+token)
	}
	req.Header.Set(models.MwRequestIDHeader, requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debugw("Transport error", "requestID", requestID, "attempt", a.String(), "error", err)
		return nil, err
	}
	return resp, nil
}

func (g *Gateway) recordResponse(resp *http.Response) {
	if resp.StatusCode == http.StatusUnauthorized {
		g.metrics.RecordRequest(metrics.OutcomeUnauthorized)
		return
	}
	g.metrics.RecordRequest(metrics.OutcomeResponse)
}

func (g *Gateway) recordFailure(err error) {
	if errors.Is(err, ErrSessionExpired) {
		g.metrics.RecordRequest(metrics.OutcomeSessionExpired)
		return
	}
	g.metrics.RecordRequest(metrics.OutcomeTransportError)
}

// drain lets the connection be reused before the retry.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
}
