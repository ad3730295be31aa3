package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/middleware"
	"github.com/keyxmakerx/catalogpanel/internal/templates/layouts"
)

// Handler handles HTTP requests for audit log operations. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// Activity renders the activity feed (GET /activity). ?type= filters by
// entity type and ?page= selects the page. HTMX requests get the feed only.
func (h *Handler) Activity(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	entityType := c.QueryParam("type")
	if entityType != "" && entityType != "players" && entityType != "enemies" {
		entityType = ""
	}

	ctx := c.Request().Context()

	entries, total, err := h.service.GetActivity(ctx, entityType, page)
	if err != nil {
		return err
	}

	summary, err := h.service.GetSummary(ctx)
	if err != nil {
		return err
	}

	feed := ActivityFeed(entries, total, page, perPage, entityType)
	if middleware.IsHTMX(c) {
		return middleware.Render(c, http.StatusOK, feed)
	}
	return middleware.Render(c, http.StatusOK, layouts.Page("Actividad", ActivityPage(summary, feed)))
}
