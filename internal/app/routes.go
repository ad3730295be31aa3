package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
	"github.com/keyxmakerx/catalogpanel/internal/imageenc"
	"github.com/keyxmakerx/catalogpanel/internal/middleware"
	"github.com/keyxmakerx/catalogpanel/internal/plugins/audit"
	"github.com/keyxmakerx/catalogpanel/internal/plugins/catalog"
	"github.com/keyxmakerx/catalogpanel/internal/templates/layouts"
	"github.com/keyxmakerx/catalogpanel/internal/widgets/stats"
)

// RegisterRoutes wires the plugins and widgets and registers their routes.
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	api := catalogapi.New(a.Config.CatalogAPI.BaseURL, a.Config.CatalogAPI.Timeout)

	// --- Audit plugin (optional) ---
	auditSvc := audit.NewNoopService()
	if a.DB != nil {
		auditSvc = audit.NewAuditService(audit.NewAuditRepository(a.DB))
	}
	audit.RegisterRoutes(e, audit.NewHandler(auditSvc))

	// Layout data for every rendered page.
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
		ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)
		ctx = layouts.SetAuditEnabled(ctx, auditSvc.Enabled())
		return ctx
	}

	// --- Catalog plugin ---
	store := catalog.NewStateStore(a.Redis, a.Config.Session.TTL)
	images := imageenc.New(a.Config.Upload.MaxSize, a.Config.Upload.MaxDimension)
	visibility := catalog.NewVisibility(store, catalog.PlayerEntity, catalog.EnemyEntity)

	uploads := catalog.UploadLimit()

	players := catalog.NewListController[catalog.Player](catalog.PlayerEntity, api, store, auditSvc)
	catalog.RegisterRoutes(e, catalog.NewHandler(players, catalog.NewFormController(players, images, visibility)), uploads)

	enemies := catalog.NewListController[catalog.Enemy](catalog.EnemyEntity, api, store, auditSvc)
	catalog.RegisterRoutes(e, catalog.NewHandler(enemies, catalog.NewFormController(enemies, images, visibility)), uploads)

	// --- Dashboard ---
	stats.RegisterRoutes(e, stats.NewHandler(stats.NewStatsService(api)))

	// Health check for container orchestration. Redis is required for the
	// form state; the audit DB only when enabled.
	e.GET("/healthz", a.healthz)
}

// healthz pings the backing stores (GET /healthz).
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "redis": "ok"}
	code := http.StatusOK

	if err := a.Redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if a.DB != nil {
		status["database"] = "ok"
		if err := a.DB.PingContext(ctx); err != nil {
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	return c.JSON(code, status)
}
