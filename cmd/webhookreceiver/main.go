package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/util"
)

const defaultAddr = ":9090"

// Prints the session-change webhooks the BFF sends to WEBHOOK_URL.
func main() {
	logger := util.NewZapLogger()

	addr := os.Getenv("WEBHOOK_RECEIVER_ADDRESS")
	if addr == "" {
		addr = defaultAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/", func(c echo.Context) error {
		var event models.SessionEvent
		if err := json.NewDecoder(c.Request().Body).Decode(&event); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error parsing JSON")
		}

		logger.Infow("Received webhook",
			"event", event.Event,
			"reason", event.Reason,
			"userID", event.UserID,
			"at", event.At,
		)

		return c.String(http.StatusOK, "Webhook received!")
	})

	logger.Infof("Webhook receiver listening on %s", addr)
	if err := e.Start(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
