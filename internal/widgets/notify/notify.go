package notify

import (
	"context"

	"github.com/labstack/echo/v4"
)

// contextKey is the Echo context key holding the request's notices.
const contextKey = "notify.notices"

// Notify records a notice for the current request. An empty kind means
// Success. Notices are rendered when the response is written.
func Notify(c echo.Context, message string, kind Kind) {
	if kind == "" {
		kind = Success
	}
	notices, _ := c.Get(contextKey).([]Notice)
	c.Set(contextKey, append(notices, Notice{Message: message, Kind: kind}))
}

// Notices returns the notices raised so far, oldest first.
func Notices(c echo.Context) []Notice {
	notices, _ := c.Get(contextKey).([]Notice)
	return notices
}

// Drain returns the pending notices and forgets them, so a second render in
// the same request does not repeat them.
func Drain(c echo.Context) []Notice {
	notices := Notices(c)
	c.Set(contextKey, []Notice(nil))
	return notices
}

type pendingKey struct{}

// pending carries notices from the renderer to Region for a full-page render.
type pending struct {
	notices  []Notice
	rendered bool
}

// WithPending hands notices to the Region rendered under ctx. The returned
// func reports whether a Region consumed them; when it did not (a bare
// fragment), the caller still owes them to the client.
func WithPending(ctx context.Context, notices []Notice) (context.Context, func() bool) {
	p := &pending{notices: notices}
	return context.WithValue(ctx, pendingKey{}, p), func() bool { return p.rendered }
}
