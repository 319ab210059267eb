package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
)

// ClassifyRequest is a single trace with the agent currently in control.
type ClassifyRequest struct {
	Trace        json.RawMessage `json:"trace"`
	CurrentAgent string          `json:"current_agent"`
}

// IngestTrace classifies a trace message of a preview. The body is the trace
// message as the agent runtime emits it.
// POST /v1/previews/:preview_id/traces
func (h *Handler) IngestTrace(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "trace body is required"})
	}

	entry, classification, err := h.service.IngestTrace(ctx, previewID, body)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProfile) {
			return errorJSON(c, http.StatusInternalServerError, err)
		}
		return errorJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"log":            entry,
		"classification": classification,
	})
}

// GetPreviewLogs returns the classified traces of a preview.
// GET /v1/previews/:preview_id/logs?after_ts=&limit=
func (h *Handler) GetPreviewLogs(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	var afterTs int64
	if v := c.QueryParam("after_ts"); v != "" {
		afterTs, _ = strconv.ParseInt(v, 10, 64)
	}

	logs, err := h.service.GetLogs(ctx, previewID, afterTs, queryInt(c, "limit", 0))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	if logs == nil {
		logs = []domain.TraceLog{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preview_id": previewID,
		"logs":       logs,
	})
}

// ClassifyTrace classifies one trace without storing it.
// POST /v1/traces/classify?profile=preview|supervisor
func (h *Handler) ClassifyTrace(c echo.Context) error {
	ctx := c.Request().Context()

	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Trace) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "trace is required"})
	}

	classification, err := h.service.Classify(ctx, c.QueryParam("profile"), req.Trace, req.CurrentAgent)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, classification)
}

// ListAnomalies lists traces no classification rule matched.
// GET /v1/traces/anomalies
func (h *Handler) ListAnomalies(c echo.Context) error {
	ctx := c.Request().Context()

	anomalies, err := h.service.ListAnomalies(ctx, queryInt(c, "limit", 50))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	if anomalies == nil {
		anomalies = []domain.TraceAnomaly{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"anomalies": anomalies})
}
