package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ErrorPage renders a full page for a failed browser navigation.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>Error %d</h1><p>%s</p><p><a href="/">Volver al inicio</a></p>`,
			code, templ.EscapeString(message))
		return err
	})
	return Page(fmt.Sprintf("Error %d", code), body)
}
