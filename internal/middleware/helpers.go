package middleware

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/widgets/notify"
)

// LayoutInjector copies layout-relevant data from the Echo context (CSRF
// token, current path) into Go's context.Context so templates can read it.
// Registered once at startup in app/routes.go.
//
// This callback pattern avoids the middleware package importing the layout
// package.
var LayoutInjector func(echo.Context, context.Context) context.Context

// IsHTMX returns true if the current request was initiated by HTMX and is NOT
// a boosted navigation. Boosted requests behave like normal page navigations
// and expect full pages.
func IsHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true" &&
		c.Request().Header.Get("HX-Boosted") != "true"
}

// Render writes the components to the response in order. Notices raised
// during the request go inside the layout's notification region on a
// full-page render, and otherwise follow the components as out-of-band
// toasts.
func Render(c echo.Context, statusCode int, components ...templ.Component) error {
	ctx := c.Request().Context()
	if LayoutInjector != nil {
		ctx = LayoutInjector(c, ctx)
	}

	notices := notify.Drain(c)
	consumed := func() bool { return false }
	if !IsHTMX(c) && len(notices) > 0 {
		ctx, consumed = notify.WithPending(ctx, notices)
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(statusCode)
	w := c.Response().Writer
	for _, comp := range components {
		if err := comp.Render(ctx, w); err != nil {
			return err
		}
	}
	if consumed() {
		return nil
	}
	return notify.Toasts(notices).Render(ctx, w)
}

// NoSwap tells HTMX to leave the target untouched and only process the
// out-of-band parts of the response, which carry the pending toasts. Used
// when the page must keep the user's input, e.g. after a failed submit.
func NoSwap(c echo.Context, components ...templ.Component) error {
	c.Response().Header().Set("HX-Reswap", "none")
	return Render(c, http.StatusOK, components...)
}
