// data.go provides typed context helpers for passing layout data from
// handlers/middleware to templates. Only simple types are stored so the
// layouts package never imports plugin types.
//
// Data flow: Middleware → Echo Context → LayoutInjector → Go Context → template
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyCSRFToken    ctxKey = "layout_csrf_token"
	keyActivePath   ctxKey = "layout_active_path"
	keyAuditEnabled ctxKey = "layout_audit_enabled"
)

// --- Setters (called by the layout injector in app/routes.go) ---

// SetCSRFToken stores the CSRF token sent by HTMX on every request.
func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// SetActivePath stores the request path for nav highlighting.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// SetAuditEnabled stores whether the activity link is shown.
func SetAuditEnabled(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, keyAuditEnabled, enabled)
}

// --- Getters (called by templates) ---

// GetCSRFToken returns the CSRF token, or "".
func GetCSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

// GetActivePath returns the request path, or "".
func GetActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}

// IsAuditEnabled reports whether the activity feed is available.
func IsAuditEnabled(ctx context.Context) bool {
	v, _ := ctx.Value(keyAuditEnabled).(bool)
	return v
}
