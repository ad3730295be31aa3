package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// sessionCookieName holds the panel session id. The id keys the per-browser
// form and edit state kept in Redis; it carries no identity.
const sessionCookieName = "catalogpanel_session"

// sessionContextKey is the Echo context key for the session id.
const sessionContextKey = "panel_session_id"

// PanelSession returns middleware that makes sure every request has a panel
// session id, issuing a random UUID cookie when missing or malformed. The
// cookie is refreshed on each request so it expires ttl after last use.
func PanelSession(ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := ""
			if cookie, err := req.Cookie(sessionCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			c.SetCookie(&http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				Secure:   isSecure(req),
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(sessionContextKey, id)

			return next(c)
		}
	}
}

// SessionID returns the panel session id set by PanelSession, or "" when
// the middleware did not run.
func SessionID(c echo.Context) string {
	id, _ := c.Get(sessionContextKey).(string)
	return id
}
