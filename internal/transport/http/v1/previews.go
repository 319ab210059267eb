package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/preview"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
)

// ResumeRequest carries the simulated user's reply.
type ResumeRequest struct {
	Text string `json:"text"`
}

// StartRequest restarts a preview.
type StartRequest struct {
	Language string          `json:"language,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// PreviewResponse is a preview with its current state.
type PreviewResponse struct {
	PreviewID string              `json:"preview_id"`
	State     domain.PreviewState `json:"state"`
	Error     string              `json:"error,omitempty"`
}

// CreatePreview opens a preview and starts the flow.
// POST /v1/previews
func (h *Handler) CreatePreview(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.CreatePreviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.FlowUUID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "flow_uuid is required"})
	}

	p, state, err := h.service.CreatePreview(ctx, req)
	if err != nil {
		if p == nil {
			return errorJSON(c, http.StatusInternalServerError, err)
		}
		return c.JSON(http.StatusBadGateway, PreviewResponse{PreviewID: p.PreviewID, State: state, Error: err.Error()})
	}

	return c.JSON(http.StatusCreated, PreviewResponse{PreviewID: p.PreviewID, State: state})
}

// ListPreviews lists recent previews.
// GET /v1/previews
func (h *Handler) ListPreviews(c echo.Context) error {
	ctx := c.Request().Context()

	previews, err := h.service.ListPreviews(ctx, queryInt(c, "limit", 50))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	if previews == nil {
		previews = []domain.Preview{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"previews": previews})
}

// GetPreview returns the state of a preview.
// GET /v1/previews/:preview_id
func (h *Handler) GetPreview(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	state, err := h.service.GetState(ctx, previewID)
	if err != nil {
		return previewError(c, err)
	}
	return c.JSON(http.StatusOK, PreviewResponse{PreviewID: previewID, State: state})
}

// StartPreview restarts the flow of a preview.
// POST /v1/previews/:preview_id/start
func (h *Handler) StartPreview(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	state, err := h.service.StartPreview(ctx, previewID, req.Language, req.Params)
	if err != nil {
		if errors.Is(err, service.ErrPreviewNotFound) || errors.Is(err, preview.ErrBusy) {
			return previewError(c, err)
		}
		return c.JSON(http.StatusBadGateway, PreviewResponse{PreviewID: previewID, State: state, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, PreviewResponse{PreviewID: previewID, State: state})
}

// ResumePreview sends the simulated user's reply. Simulator failures show up
// as error events in the returned state.
// POST /v1/previews/:preview_id/resume
func (h *Handler) ResumePreview(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	state, err := h.service.Resume(ctx, previewID, req.Text)
	if err != nil {
		return previewError(c, err)
	}
	return c.JSON(http.StatusOK, PreviewResponse{PreviewID: previewID, State: state})
}

// GetPreviewEvents returns the stored timeline of a preview.
// GET /v1/previews/:preview_id/events?after_seq=&limit=
func (h *Handler) GetPreviewEvents(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	events, err := h.service.GetEvents(ctx, previewID, queryInt(c, "after_seq", 0), queryInt(c, "limit", 0))
	if err != nil {
		return previewError(c, err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preview_id": previewID,
		"events":     events,
	})
}

// GetPreviewActivity returns the flow-graph annotation of a preview.
// GET /v1/previews/:preview_id/activity
func (h *Handler) GetPreviewActivity(c echo.Context) error {
	ctx := c.Request().Context()

	activity, err := h.service.GetActivity(ctx, c.Param("preview_id"))
	if err != nil {
		return previewError(c, err)
	}
	return c.JSON(http.StatusOK, activity)
}

func previewError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrPreviewNotFound):
		return errorJSON(c, http.StatusNotFound, err)
	case errors.Is(err, preview.ErrBusy), errors.Is(err, preview.ErrNotStarted):
		return errorJSON(c, http.StatusConflict, err)
	default:
		return errorJSON(c, http.StatusInternalServerError, err)
	}
}
