package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
)

// csrfTokenLength is the number of random bytes in a CSRF token (32 bytes = 64 hex chars).
const csrfTokenLength = 32

// csrfCookieName is the name of the cookie that stores the CSRF token.
const csrfCookieName = "catalogpanel_csrf"

// CSRFHeaderName is the header HTMX sends the token in. The base layout sets
// it on <body> through hx-headers so every HTMX request carries it.
const CSRFHeaderName = "X-CSRF-Token"

// csrfFormField is the hidden form field name for non-HTMX form submissions.
const csrfFormField = "csrf_token"

// CSRF returns middleware that implements the double-submit cookie pattern
// on all state-changing requests (POST, PUT, PATCH, DELETE).
//
//  1. If no CSRF cookie exists, generate one and set it.
//  2. On mutating requests, compare the cookie value with the X-CSRF-Token
//     header or, failing that, the csrf_token form field.
//  3. If they don't match, reject with 403 Forbidden.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			cookieToken := ""
			if cookie, err := req.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
				cookieToken = cookie.Value
			} else {
				token, genErr := generateCSRFToken()
				if genErr != nil {
					return apperror.NewInternal(genErr)
				}
				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false,
					Secure:   isSecure(req),
					SameSite: http.SameSiteLaxMode,
				})
				// A request that arrives without the cookie cannot pass
				// validation below; the fresh token is for the next one.
				c.Set("csrf_token", token)
				if isSafeMethod(req.Method) {
					return next(c)
				}
				return csrfRejected()
			}
			c.Set("csrf_token", cookieToken)

			if isSafeMethod(req.Method) {
				return next(c)
			}

			submitted := req.Header.Get(CSRFHeaderName)
			if submitted == "" {
				submitted = req.FormValue(csrfFormField)
			}

			if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
				return csrfRejected()
			}

			return next(c)
		}
	}
}

func csrfRejected() error {
	return &apperror.AppError{
		Code:    http.StatusForbidden,
		Type:    "forbidden",
		Message: "La sesión expiró, recarga la página",
	}
}

// isSafeMethod returns true for HTTP methods that should not change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// isSecure reports whether the request reached the proxy over TLS.
func isSecure(req *http.Request) bool {
	return req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https"
}

// generateCSRFToken generates a cryptographically random hex-encoded token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetCSRFToken retrieves the CSRF token from the Echo context.
func GetCSRFToken(c echo.Context) string {
	if token, ok := c.Get("csrf_token").(string); ok {
		return token
	}
	return ""
}
