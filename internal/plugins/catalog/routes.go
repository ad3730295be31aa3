package catalog

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/middleware"
)

// Upload endpoints decode whole images in memory, so they get a per-IP limit.
const (
	uploadRateLimit  = 30
	uploadRateWindow = time.Minute
)

// UploadLimit returns the per-IP limiter for the upload endpoints. Create it
// once and pass it to every RegisterRoutes call so all entity types share
// one budget.
func UploadLimit() echo.MiddlewareFunc {
	return middleware.RateLimit(uploadRateLimit, uploadRateWindow)
}

// RegisterRoutes sets up one entity type's page and fragment routes under
// its slug, e.g. /players and /players/form.
func RegisterRoutes[T any, P RecordPtr[T]](e *echo.Echo, h *Handler[T, P], limit echo.MiddlewareFunc) {
	slug := "/" + h.entity.Slug()

	e.GET(slug, h.Page)

	g := e.Group(slug)
	g.GET("/list", h.List)
	g.GET("/history", h.History)
	g.POST("/delete-all", h.DeleteAll)

	// Form actions.
	g.POST("/form/toggle", h.Toggle)
	g.POST("/form/cancel", h.Cancel)
	g.POST("/form/preview", h.Preview, limit)
	g.POST("/form", h.Submit, limit)
	g.POST("/:index/edit", h.StartEdit)
}
