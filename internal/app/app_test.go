package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:        "development",
		CatalogAPI: config.CatalogAPIConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Session:    config.SessionConfig{TTL: time.Hour},
		Upload:     config.UploadConfig{MaxSize: 5 << 20},
	}
}

func handleError(t *testing.T, err error, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	a := New(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/players/form", nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	a.errorHandler(err, a.Echo.NewContext(req, rec))
	return rec
}

func TestErrorHandler_HTMXServerErrorIsConnectionToast(t *testing.T) {
	for _, err := range []error{
		errors.New("boom"),
		apperror.NewInternal(errors.New("redis down")),
		apperror.NewUpstream("Error al crear jugador", errors.New("timeout")),
	} {
		rec := handleError(t, err, true)
		if rec.Code != http.StatusOK || rec.Header().Get("HX-Reswap") != "none" {
			t.Errorf("%v: expected no-swap 200, got %d", err, rec.Code)
		}
		body := rec.Body.String()
		if strings.Count(body, "Error de conexión con el servidor") != 1 {
			t.Errorf("%v: expected one connection toast, got %s", err, body)
		}
	}
}

func TestErrorHandler_HTMXClientErrorKeepsMessage(t *testing.T) {
	rec := handleError(t, &apperror.AppError{Code: http.StatusForbidden, Type: "forbidden", Message: "La sesión expiró, recarga la página"}, true)
	if !strings.Contains(rec.Body.String(), "La sesión expiró, recarga la página") {
		t.Errorf("expected the CSRF message, got %s", rec.Body.String())
	}

	rec = handleError(t, echo.ErrStatusRequestEntityTooLarge, true)
	if !strings.Contains(rec.Body.String(), "El archivo es demasiado grande.") {
		t.Errorf("expected the size message, got %s", rec.Body.String())
	}
}

func TestErrorHandler_BrowserGetsErrorPage(t *testing.T) {
	rec := handleError(t, echo.ErrNotFound, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Error 404</h1>") || !strings.Contains(body, "La página no existe.") {
		t.Errorf("unexpected error page: %s", body)
	}
}

func TestBodyLimit(t *testing.T) {
	if got := bodyLimit(5 << 20); got != "6144K" {
		t.Errorf("expected 6144K, got %s", got)
	}
}

func TestHealthz(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	a := New(testConfig(), nil, rdb)
	a.RegisterRoutes()

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("expected healthy, got %d %s", rec.Code, rec.Body.String())
	}

	mr.Close()
	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with redis down, got %d", rec.Code)
	}
}

func TestRoutes_ActivityHiddenWithoutAudit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	a := New(testConfig(), nil, rdb)
	a.RegisterRoutes()

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for /activity without audit, got %d", rec.Code)
	}
}
