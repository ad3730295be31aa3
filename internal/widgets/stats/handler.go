package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/middleware"
	"github.com/keyxmakerx/catalogpanel/internal/templates/layouts"
	"github.com/keyxmakerx/catalogpanel/internal/widgets/notify"
)

// Handler serves the dashboard and the counters fragment.
type Handler struct {
	service StatsService
}

// NewHandler creates a new stats handler backed by the given service.
func NewHandler(service StatsService) *Handler {
	return &Handler{service: service}
}

// counters loads the totals. A failure raises the error notification and
// yields nil so the counters show placeholders.
func (h *Handler) counters(c echo.Context) *Counters {
	counters, err := h.service.Counters(c.Request().Context())
	if err != nil {
		notify.Notify(c, apperror.SafeMessage(err), notify.Error)
		return nil
	}
	return counters
}

// Dashboard renders the landing page (GET /).
func (h *Handler) Dashboard(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, layouts.Page("Inicio", Dashboard(h.counters(c))))
}

// Counters renders the counters fragment (GET /stats).
func (h *Handler) Counters(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, CountersView(h.counters(c)))
}
