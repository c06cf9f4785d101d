package controller

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openapiSpec []byte

// GetSwagger returns the parsed description of the /api surface.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return swagger, nil
}

// RegisterHandlers wires the controller onto g, which is mounted at /api.
// validator runs on every auth route; limiter only on the credential ones.
func RegisterHandlers(g *echo.Group, c *Controller, validator, limiter echo.MiddlewareFunc) {
	g.GET("/ping", c.CheckServer)
	g.GET("/session", c.GetSession)

	auth := g.Group("/auth", validator)
	auth.POST("/login", c.Login, limiter)
	auth.POST("/register", c.Register, limiter)
	auth.POST("/logout", c.Logout)

	g.Any("/v1/*", c.Proxy)
}
