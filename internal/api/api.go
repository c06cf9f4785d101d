package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/controller"
	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
	"github.com/rryowa/medods_practice/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

type API struct {
	server           *echo.Echo
	controller       *controller.Controller
	log              *zap.SugaredLogger
	gracefulTimeout  time.Duration
	apiKeyRepository storage.APIKeyRepository
	limiter          *RateLimiter
	gatherer         prometheus.Gatherer
}

// NewAPI builds the echo server. apiKeyRepository may be nil, in which case
// the X-API-Key check is skipped.
func NewAPI(
	c *controller.Controller,
	l *zap.SugaredLogger,
	sc *util.ServerConfig,
	rc *util.RateLimiterConfig,
	apiKeyRepository storage.APIKeyRepository,
	gatherer prometheus.Gatherer,
) *API {
	e := echo.New()
	e.HideBanner = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	return &API{
		server:           e,
		controller:       c,
		log:              l,
		gracefulTimeout:  sc.GracefulTimeout,
		apiKeyRepository: apiKeyRepository,
		limiter:          NewRateLimiter(rc, l),
		gatherer:         gatherer,
	}
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.limiter.Stop()

	if err := a.setupRoutes(); err != nil {
		a.log.Fatalf("Failed to set up routes: %v", err)
	}

	a.ListenGracefulShutdown(ctx)
}

func (a *API) setupRoutes() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.Recover())
	a.server.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: models.MwRequestIDHeader,
	}))
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	a.server.GET("/metrics", echo.WrapHandler(metrics.Handler(a.gatherer)))

	g := a.server.Group("/api")
	if a.apiKeyRepository != nil {
		g.Use(APIKeyAuthMiddleware(a.apiKeyRepository))
	}
	controller.RegisterHandlers(g, a.controller, middleware.OapiRequestValidator(swagger), a.limiter.Middleware())

	return nil
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Errorf("shutdown: %v", err)
	}

	longShutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(a.gracefulTimeout)
		longShutdown <- struct{}{}
	}()

	select {
	case <-shutdownCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			a.log.Info("server shutdown completed")
		} else {
			a.log.Errorf("server shutdown: %v", ctx.Err())
		}
	case <-longShutdown:
		a.log.Infof("finished")
	}
}
