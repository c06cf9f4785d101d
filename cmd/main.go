package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/api"
	"github.com/rryowa/medods_practice/internal/controller"
	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/service"
	"github.com/rryowa/medods_practice/internal/storage"
	"github.com/rryowa/medods_practice/internal/storage/memory"
	"github.com/rryowa/medods_practice/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()
	defer func() { _ = logger.Sync() }()

	gatewayConfig := util.NewGatewayConfig()

	httpClient, err := service.NewHTTPClient(gatewayConfig)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	sessionStore := memory.NewSessionStore(logger)
	inspector := service.NewTokenInspector()
	authClient := service.NewAuthClient(gatewayConfig, httpClient, logger)

	authService := service.NewAuthService(gatewayConfig, authClient, inspector, sessionStore, collector, logger)
	coordinator := service.NewRefreshCoordinator(gatewayConfig, authClient, inspector, sessionStore, authService, collector, logger)
	gateway := service.NewGateway(gatewayConfig, httpClient, sessionStore, inspector, coordinator, collector, logger)

	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	unsubscribe := webhookService.Attach(sessionStore)
	defer webhookService.Wait()
	defer unsubscribe()

	var apiKeyRepository storage.APIKeyRepository
	if key := util.GetAPIKey(); key != "" {
		apiKeyRepository = memory.NewAPIKeyRepository(models.APIKey{Key: key, ClientID: "ui"})
	} else {
		logger.Warn("BFF_API_KEY is not set, local API is unauthenticated")
	}

	controller := controller.NewController(logger, authService, gateway)

	apiServer := api.NewAPI(controller, logger, util.NewServerConfig(), util.NewRateLimiterConfig(), apiKeyRepository, registry)
	apiServer.Run(ctx)

	// the UI is gone; tell the server the session is over
	if authService.Current() != nil {
		authService.Logout(ctx, models.LogoutReasonUser)
	}
}
