package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Region renders the container that toasts are appended to. Placed once in
// the base layout. On a full-page render it also holds the notices handed
// over through WithPending, since htmx ignores out-of-band swaps in the
// initial document.
func Region() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s" class="notifications" aria-live="polite">`, RegionID)
		if p, ok := ctx.Value(pendingKey{}).(*pending); ok && !p.rendered {
			writeToasts(&b, p.notices)
			p.rendered = true
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Toasts renders notices as a single out-of-band swap that appends to the
// region. Renders nothing when there are no notices.
func Toasts(notices []Notice) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if len(notices) == 0 {
			return nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s" hx-swap-oob="beforeend">`, RegionID)
		writeToasts(&b, notices)
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeToasts(b *strings.Builder, notices []Notice) {
	for _, n := range notices {
		fmt.Fprintf(b, `<div class="notification %s" role="status" remove-me="%dms">%s</div>`,
			templ.EscapeString(string(n.Kind)), TTL.Milliseconds(), templ.EscapeString(n.Message))
	}
}
