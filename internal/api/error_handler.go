package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/controller"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/service"
	"github.com/rryowa/medods_practice/internal/util"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, reason := classify(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("HTTP error", "status", status, "error", err, "uri", c.Request().RequestURI)
		}

		if err := c.JSON(status, models.ErrorResponse{Reason: reason}); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func classify(err error) (int, string) {
	if isUnauthorizedSessionError(err) {
		return http.StatusUnauthorized, err.Error()
	}

	var respErr util.MyResponseError
	if errors.As(err, &respErr) {
		return respErr.Status, respErr.Msg
	}

	var urlErr *url.Error
	if errors.Is(err, controller.ErrUpstream) || errors.Is(err, service.ErrTokenUndecodable) || errors.As(err, &urlErr) {
		return http.StatusBadGateway, err.Error()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	return http.StatusInternalServerError, "internal server error"
}

func isUnauthorizedSessionError(err error) bool {
	return errors.Is(err, service.ErrSessionExpired) ||
		errors.Is(err, service.ErrUnauthorized) ||
		errors.Is(err, service.ErrInvalidCredentials)
}
