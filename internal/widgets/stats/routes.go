package stats

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the dashboard and its counters fragment.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/", h.Dashboard)
	e.GET("/stats", h.Counters)
}
