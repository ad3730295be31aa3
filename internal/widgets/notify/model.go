// Package notify shows transient messages to the user. Handlers collect
// notices on the Echo context while serving a request. The renderer puts
// them in the page's notification region: in place on a full page, as HTMX
// out-of-band swaps otherwise. Each toast removes itself after TTL.
//
// There is no queue and no dedupe: every Notify call becomes one toast.
package notify

import "time"

// Kind selects the toast style.
type Kind string

const (
	// Success is the default kind.
	Success Kind = "success"

	// Error marks failures.
	Error Kind = "error"
)

// TTL is how long a toast stays on screen.
const TTL = 3 * time.Second

// RegionID is the DOM id of the container toasts are appended to.
const RegionID = "notifications"

// Notice is one message raised during a request.
type Notice struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}
