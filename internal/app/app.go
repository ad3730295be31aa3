// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (optional audit DB pool, Redis client,
// Echo instance) and wires the catalog plugin, the audit plugin and the
// dashboard widgets together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/config"
	"github.com/keyxmakerx/catalogpanel/internal/middleware"
	"github.com/keyxmakerx/catalogpanel/internal/templates/layouts"
	"github.com/keyxmakerx/catalogpanel/internal/widgets/notify"
)

// msgConnectionError is the one notification shown when an HTMX request
// fails for a reason the user cannot act on.
const msgConnectionError = "Error de conexión con el servidor"

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB pool of the audit log. Nil when auditing is off.
	DB *sql.DB

	// Redis holds per-session form state and load fences.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP for rate limiting and the audit log.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (CSRF) runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// Uploads are capped by the encoder too; this bounds the whole body
	// before multipart parsing spools it.
	a.Echo.Use(echomw.BodyLimit(bodyLimit(a.Config.Upload.MaxSize)))

	// Panel session -- the cookie every piece of form state is keyed by.
	a.Echo.Use(middleware.PanelSession(a.Config.Session.TTL))

	// CSRF -- double-submit cookie pattern on all state-changing requests.
	a.Echo.Use(middleware.CSRF())
}

// bodyLimit allows one image upload plus 1MB for the other form fields, in
// the "<n>K" form BodyLimit expects.
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dK", (maxUpload+1<<20)/1024)
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) and Echo's HTTP errors to a status and message.
//
// HTMX requests never get an error page swapped into a fragment target:
// they get a single error toast and HX-Reswap: none. Client errors such as
// an expired CSRF token or a rate limit show their own message; anything
// else shows the generic connection error.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in HTTP errors (404 from the router, 413 from BodyLimit).
		code = echoErr.Code
		message = defaultErrorMessage(code)
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if middleware.IsHTMX(c) {
		if code >= http.StatusInternalServerError {
			message = msgConnectionError
		}
		notify.Notify(c, message, notify.Error)
		if err := middleware.NoSwap(c); err != nil {
			slog.Error("rendering error toast", slog.Any("error", err))
		}
		return
	}

	if err := middleware.Render(c, code, layouts.ErrorPage(code, message)); err != nil {
		slog.Error("rendering error page", slog.Any("error", err))
	}
}

// defaultErrorMessage returns a user-facing message for common HTTP status
// codes when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "La solicitud no es válida."
	case http.StatusForbidden:
		return "La sesión expiró, recarga la página"
	case http.StatusNotFound:
		return "La página no existe."
	case http.StatusMethodNotAllowed:
		return "Acción no permitida."
	case http.StatusRequestEntityTooLarge:
		return "El archivo es demasiado grande."
	case http.StatusTooManyRequests:
		return "Demasiadas solicitudes, espera un momento."
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "El servicio del catálogo no está disponible."
	default:
		return "Ocurrió un error inesperado. Inténtalo de nuevo."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting catalog panel",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("catalog_api", a.Config.CatalogAPI.BaseURL),
	)
	return a.Echo.Start(addr)
}
