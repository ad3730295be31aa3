package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the activity feed. Nothing is registered when the
// audit log is disabled, so /activity answers 404.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	if !h.service.Enabled() {
		return
	}
	e.GET("/activity", h.Activity)
}
