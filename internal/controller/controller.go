package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/service"
)

const maxProxyBodySize = 10 << 20

// ErrUpstream marks a domain call that never got a response from the practice API.
var ErrUpstream = errors.New("upstream unavailable")

//nolint:gochecknoglobals // fixed header set
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type SessionManager interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error)
	Logout(ctx context.Context, reason models.LogoutReason)
	Current() *models.Session
}

type Dispatcher interface {
	Dispatch(ctx context.Context, spec models.RequestSpec) (*http.Response, error)
}

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService SessionManager
	gateway     Dispatcher
}

func NewController(logger *zap.SugaredLogger, authService SessionManager, gateway Dispatcher) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		gateway:     gateway,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := c.authService.Login(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// (POST /api/auth/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := c.authService.Register(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// (POST /api/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	var reason string
	if err := runtime.BindQueryParameter("form", true, false, "reason", ctx.QueryParams(), &reason); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid format for parameter reason: %s", err))
	}

	logoutReason := models.LogoutReasonUser
	if reason == string(models.LogoutReasonSessionExpired) {
		logoutReason = models.LogoutReasonSessionExpired
	}

	c.authService.Logout(ctx.Request().Context(), logoutReason)
	return ctx.NoContent(http.StatusNoContent)
}

// (GET /api/session).
func (c *Controller) GetSession(ctx echo.Context) error {
	session := c.authService.Current()
	if session == nil {
		return fmt.Errorf("no active session: %w", service.ErrUnauthorized)
	}
	return ctx.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// Proxy forwards /api/v1/* to the practice API through the gateway and
// copies the response back.
func (c *Controller) Proxy(ctx echo.Context) error {
	req := ctx.Request()

	body, err := io.ReadAll(io.LimitReader(req.Body, maxProxyBodySize))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	header := forwardHeaders(req.Header)
	if rid := ctx.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		header.Set(models.MwRequestIDHeader, rid)
	}

	spec := models.RequestSpec{
		Method: req.Method,
		Path:   "/" + strings.TrimLeft(ctx.Param("*"), "/"),
		Query:  req.URL.Query(),
		Header: header,
		Body:   body,
	}

	resp, err := c.gateway.Dispatch(req.Context(), spec)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			return err
		}
		c.zapLogger.Warnw("Proxy request failed", "method", spec.Method, "path", spec.Path, "error", err)
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	out := ctx.Response()
	for name, values := range resp.Header {
		if isHopByHop(name) || name == "Set-Cookie" || name == "Content-Length" {
			continue
		}
		for _, v := range values {
			out.Header().Add(name, v)
		}
	}
	out.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(out, resp.Body); err != nil {
		c.zapLogger.Warnw("Failed to copy proxied body", "path", spec.Path, "error", err)
	}
	return nil
}

// forwardHeaders drops the headers that belong to the UI<->BFF hop.
func forwardHeaders(in http.Header) http.Header {
	out := in.Clone()
	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	out.Del(models.MwAPIKeyHeader)
	out.Del(models.MwAuthHeader)
	out.Del("Cookie")
	out.Del("Content-Length")
	return out
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}
