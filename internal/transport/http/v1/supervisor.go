package v1

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/service"
	"github.com/xiaot623/gogo/agentbuilder/internal/supervisor"
)

// ListConversations returns a page of supervised conversations.
// GET /v1/supervisor/conversations?page=&start=DD/MM/YYYY&end=&status=a,b&search=
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()

	filter := domain.ConversationFilter{
		Page:   queryInt(c, "page", 1),
		Start:  c.QueryParam("start"),
		End:    c.QueryParam("end"),
		Search: c.QueryParam("search"),
	}
	if status := c.QueryParam("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			filter.Status = append(filter.Status, domain.ConversationStatus(strings.TrimSpace(s)))
		}
	}

	page, err := h.service.ListConversations(ctx, filter)
	if err != nil {
		return supervisorError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetConversationLogs returns the classified traces of a conversation.
// GET /v1/supervisor/conversations/:urn/logs
func (h *Handler) GetConversationLogs(c echo.Context) error {
	ctx := c.Request().Context()
	urn, err := url.PathUnescape(c.Param("urn"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid urn"})
	}

	logs, err := h.service.ConversationLogs(ctx, urn)
	if err != nil {
		return supervisorError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"urn":  urn,
		"logs": logs,
	})
}

func supervisorError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrSupervisorDisabled):
		return errorJSON(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, context.Canceled):
		// Superseded by a newer load.
		return errorJSON(c, http.StatusConflict, err)
	case errors.Is(err, supervisor.ErrInvalidFilter):
		return errorJSON(c, http.StatusBadRequest, err)
	default:
		return errorJSON(c, http.StatusBadGateway, err)
	}
}
