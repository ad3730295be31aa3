package catalog

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

// safeImage matches the data URIs that may be placed inside a CSS url().
// Anything else (including images the API returns in another shape) is
// not rendered, so a stored value cannot break out of the style attribute.
var safeImage = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]*$`)

// backgroundStyle returns a style attribute value showing img, or "".
func backgroundStyle(img string) string {
	if !safeImage.MatchString(img) {
		return ""
	}
	return "background-image:url('" + img + "')"
}

// DOM ids of one entity type's regions.
func listID(e *Entity) string          { return e.Slug() + "-list" }
func historyID(e *Entity) string       { return e.Slug() + "-history" }
func formContainerID(e *Entity) string { return e.FormID + "-container" }
func previewID(e *Entity) string       { return e.FormID + "-preview" }

// write renders a string builder's content as a component.
func write(w io.Writer, b *strings.Builder) error {
	_, err := io.WriteString(w, b.String())
	return err
}

// ListView renders the list region: one card per record, or the message
// when set. oob marks it as an out-of-band swap.
func ListView(e *Entity, records []Record, message string, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s" class="cards"%s>`, listID(e), oobAttr(oob))
		if message != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, templ.EscapeString(message))
		}
		for i, r := range records {
			writeCard(&b, e, i, r)
		}
		b.WriteString(`</div>`)
		return write(w, &b)
	})
}

// writeCard renders one record card with its edit action.
func writeCard(b *strings.Builder, e *Entity, index int, r Record) {
	values := r.Values()
	b.WriteString(`<div class="card">`)
	fmt.Fprintf(b, `<div class="card-image" style="%s"></div>`, templ.EscapeString(backgroundStyle(r.ImageData())))
	fmt.Fprintf(b, `<h3>%s</h3>`, templ.EscapeString(r.Title()))
	for _, f := range e.Fields {
		if f.Card == "" {
			continue
		}
		fmt.Fprintf(b, `<p><b>%s:</b> %s</p>`, templ.EscapeString(f.Card), templ.EscapeString(values[f.Name]))
	}
	fmt.Fprintf(b, `<button class="btn-warning" data-idx="%d" hx-post="/%s/%d/edit" hx-target="#%s" hx-swap="outerHTML">Editar</button>`,
		index, e.Slug(), index, formContainerID(e))
	b.WriteString(`</div>`)
}

// HistoryView renders the history region: one line per summary, or the
// message when set.
func HistoryView(e *Entity, h *History, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<ul id="%s" class="history"%s>`, historyID(e), oobAttr(oob))
		if h.Message != "" {
			class := ""
			if h.Failed {
				class = ` class="error"`
			}
			fmt.Fprintf(&b, `<li%s>%s</li>`, class, templ.EscapeString(h.Message))
		}
		for _, line := range h.Lines {
			fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(line))
		}
		b.WriteString(`</ul>`)
		return write(w, &b)
	})
}

// FormView renders the form container. A hidden form is rendered with its
// fields empty and display:none, so toggling swaps the whole container.
func FormView(e *Entity, state *FormState) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s">`, formContainerID(e))

		display := "none"
		if state.Visible {
			display = "grid"
		}
		fmt.Fprintf(&b, `<form id="%s" class="entity-form" style="display:%s" hx-post="/%s/form" hx-encoding="multipart/form-data" hx-target="#%s" hx-swap="outerHTML">`,
			e.FormID, display, e.Slug(), formContainerID(e))

		heading := "Nuevo " + e.Msg.Singular
		if state.Edit != nil {
			heading = fmt.Sprintf("Editar %s #%d", e.Msg.Singular, state.Edit.Index)
		}
		fmt.Fprintf(&b, `<h2 style="grid-column:1/-1">%s</h2>`, templ.EscapeString(heading))

		for _, f := range e.Fields {
			if f.Hidden {
				continue
			}
			writeInput(&b, f, state.Value(f.Name))
		}

		fmt.Fprintf(&b, `<label>Imagen<input type="file" name="image" accept="image/*" hx-post="/%s/form/preview" hx-trigger="change" hx-target="#%s" hx-swap="outerHTML"></label>`,
			e.Slug(), previewID(e))
		if err := PreviewView(e, state.Preview).Render(ctx, &b); err != nil {
			return err
		}

		b.WriteString(`<div style="grid-column:1/-1" class="toolbar">`)
		b.WriteString(`<button type="submit">Guardar</button>`)
		fmt.Fprintf(&b, `<button type="button" hx-post="/%s/form/cancel" hx-target="#%s" hx-swap="outerHTML">Cancelar</button>`,
			e.Slug(), formContainerID(e))
		b.WriteString(`</div></form></div>`)
		return write(w, &b)
	})
}

// writeInput renders one labelled input for a field.
func writeInput(b *strings.Builder, f Field, value string) {
	inputType := "text"
	extra := ""
	switch f.Type {
	case FieldInt, FieldFloat:
		inputType = "number"
		extra = fmt.Sprintf(` step="%s" min="0"`, f.Step)
	}
	fmt.Fprintf(b, `<label>%s<input type="%s" name="%s" value="%s" required%s></label>`,
		templ.EscapeString(f.Label), inputType, f.Name, templ.EscapeString(value), extra)
}

// PreviewView renders the image preview box.
func PreviewView(e *Entity, img string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="%s" class="image-preview" style="%s"></div>`,
			previewID(e), templ.EscapeString(backgroundStyle(img)))
		return err
	})
}

// EntityPage renders the full management page of one entity type.
func EntityPage(e *Entity, state *FormState, list, history templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>%s</h1><div class="toolbar">`, templ.EscapeString(e.Msg.Title))
		fmt.Fprintf(&b, `<button id="toggle-%s" hx-post="/%s/form/toggle" hx-target="#%s" hx-swap="outerHTML">%s</button>`,
			e.FormID, e.Slug(), formContainerID(e), templ.EscapeString(e.Msg.NewButton))
		fmt.Fprintf(&b, `<button hx-get="/%s/list" hx-target="#%s" hx-swap="outerHTML">Recargar</button>`,
			e.Slug(), listID(e))
		fmt.Fprintf(&b, `<button class="btn-danger" hx-post="/%s/delete-all" hx-vals='{"confirm":"true"}' hx-confirm="%s" hx-swap="none">Eliminar todos</button>`,
			e.Slug(), templ.EscapeString(e.Msg.DeleteConfirm))
		b.WriteString(`</div>`)
		if err := write(w, &b); err != nil {
			return err
		}

		if err := FormView(e, state).Render(ctx, w); err != nil {
			return err
		}
		if err := list.Render(ctx, w); err != nil {
			return err
		}

		b.Reset()
		fmt.Fprintf(&b, `<h2>Histórico</h2><button hx-get="/%s/history" hx-target="#%s" hx-swap="outerHTML">Actualizar histórico</button>`,
			e.Slug(), historyID(e))
		if err := write(w, &b); err != nil {
			return err
		}
		return history.Render(ctx, w)
	})
}

func oobAttr(oob bool) string {
	if oob {
		return ` hx-swap-oob="true"`
	}
	return ""
}
