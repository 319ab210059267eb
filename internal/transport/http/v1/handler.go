// Package v1 provides the v1 HTTP handlers.
package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, h *hub.Hub) *Handler {
	return &Handler{
		service: service,
		hub:     h,
	}
}

// RegisterRoutes registers routes with the echo server. resumeMiddleware
// wraps the resume route only.
func (h *Handler) RegisterRoutes(e *echo.Echo, resumeMiddleware ...echo.MiddlewareFunc) {
	// Preview API
	e.POST("/v1/previews", h.CreatePreview)
	e.GET("/v1/previews", h.ListPreviews)
	e.GET("/v1/previews/:preview_id", h.GetPreview)
	e.POST("/v1/previews/:preview_id/start", h.StartPreview)
	e.POST("/v1/previews/:preview_id/resume", h.ResumePreview, resumeMiddleware...)
	e.GET("/v1/previews/:preview_id/events", h.GetPreviewEvents)
	e.GET("/v1/previews/:preview_id/activity", h.GetPreviewActivity)
	e.GET("/v1/previews/:preview_id/stream", h.StreamPreview)

	// Trace API
	e.POST("/v1/previews/:preview_id/traces", h.IngestTrace)
	e.GET("/v1/previews/:preview_id/logs", h.GetPreviewLogs)
	e.POST("/v1/traces/classify", h.ClassifyTrace)
	e.GET("/v1/traces/anomalies", h.ListAnomalies)

	// Supervisor API
	e.GET("/v1/supervisor/conversations", h.ListConversations)
	e.GET("/v1/supervisor/conversations/:urn/logs", h.GetConversationLogs)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func queryInt(c echo.Context, name string, fallback int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
