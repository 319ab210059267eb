// Package http provides the HTTP server of the preview service.
package http

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/xiaot623/gogo/agentbuilder/internal/config"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
	v1 "github.com/xiaot623/gogo/agentbuilder/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service, h *hub.Hub, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(LogLevel(cfg.LogLevel))

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Resume calls hit the simulation backend; limit them per client.
	resumeLimit := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.ResumeRatePerSec)))

	// Handlers
	v1Handler := v1.NewHandler(svc, h)

	// Register Routes
	v1Handler.RegisterRoutes(e, resumeLimit)

	return e
}

// LogLevel maps a configured level name to echo's logger level.
func LogLevel(name string) log.Lvl {
	switch strings.ToLower(name) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
