package middleware

import (
	"github.com/labstack/echo/v4"
)

// htmxOrigin serves htmx and its remove-me extension.
const htmxOrigin = "https://unpkg.com"

// SecurityHeaders returns middleware that sets security-related HTTP headers
// on every response.
//
// Entity images are data URIs embedded in the page, so img-src allows data:.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// 'unsafe-inline' styles are needed for the background-image
			// previews on cards and the form.
			h.Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self' "+htmxOrigin+"; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: blob:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'; "+
					"base-uri 'self'; "+
					"form-action 'self'",
			)

			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

			return next(c)
		}
	}
}
