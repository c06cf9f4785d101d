package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
)

// APIKeyAuthMiddleware checks the X-API-Key header and stores the client id
// bound to the key in the echo context.
func APIKeyAuthMiddleware(apiKeyRepo storage.APIKeyRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(models.MwAPIKeyHeader)

			if apiKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "API key is missing")
			}

			foundAPIKey, err := apiKeyRepo.GetAPIKey(c.Request().Context(), apiKey)
			if errors.Is(err, storage.ErrAPIKeyNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Error validating API key")
			}

			c.Set(models.MwClientIDKey, foundAPIKey.ClientID)

			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"requestID", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
				return nil
			}
			a.log.Infow("Request", fields...)
			return nil
		},
	}
}
