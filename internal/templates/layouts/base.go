package layouts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/catalogpanel/internal/widgets/notify"
)

// htmx and its remove-me extension, which drops toasts after notify.TTL.
const (
	htmxScript     = "https://unpkg.com/htmx.org@1.9.12"
	removeMeScript = "https://unpkg.com/htmx.org@1.9.12/dist/ext/remove-me.js"
)

// navLink is one entry of the top navigation.
type navLink struct {
	Href  string
	Label string
	Audit bool
}

var navLinks = []navLink{
	{Href: "/", Label: "Inicio"},
	{Href: "/players", Label: "Jugadores"},
	{Href: "/enemies", Label: "Enemigos"},
	{Href: "/activity", Label: "Actividad", Audit: true},
}

// styles is the whole panel stylesheet. Cards and previews show data-URI
// images as backgrounds.
const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f4f5f7;color:#222}
header{background:#263238;color:#fff;padding:.75rem 1.5rem;display:flex;gap:1.5rem;align-items:center}
header a{color:#cfd8dc;text-decoration:none}header a.active{color:#fff;font-weight:600}
main{padding:1.5rem;max-width:1100px;margin:0 auto}
.toolbar{display:flex;gap:.5rem;margin-bottom:1rem}
.cards{display:grid;grid-template-columns:repeat(auto-fill,minmax(200px,1fr));gap:1rem}
.card{background:#fff;border-radius:6px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card p{margin:.2rem 0}
.card-image,.image-preview{height:140px;background-size:cover;background-position:center;border-radius:4px;background-color:#eceff1}
.image-preview{width:140px}
form.entity-form{background:#fff;padding:1rem;border-radius:6px;margin-bottom:1rem;display:grid;grid-template-columns:repeat(2,1fr);gap:.75rem}
form.entity-form label{display:flex;flex-direction:column;font-size:.9rem}
.counters{display:flex;gap:1rem}.counter{background:#fff;padding:1rem 1.5rem;border-radius:6px;font-size:1.5rem}
.notifications{position:fixed;top:1rem;right:1rem;display:flex;flex-direction:column;gap:.5rem;z-index:10}
.notification{padding:.75rem 1rem;border-radius:4px;color:#fff;background:#2e7d32}
.notification.error{background:#c62828}
.stats{display:flex;gap:1rem;align-items:center;margin-bottom:1rem}
.stat{display:flex;flex-direction:column;padding:1rem;border:1px solid #ddd;border-radius:6px;min-width:8rem}
.stat-value{font-size:2rem;font-weight:bold}
.btn{padding:.4rem .8rem;border:1px solid #888;border-radius:4px;text-decoration:none;color:inherit}
.btn-warning{background:#ffa000;border:0;padding:.4rem .8rem;border-radius:4px;cursor:pointer}
.btn-danger{background:#c62828;color:#fff;border:0;padding:.4rem .8rem;border-radius:4px;cursor:pointer}
.htmx-request{opacity:.6}
`

// Page renders a full HTML document around content. Every HTMX request
// sent from the page carries the CSRF header.
func Page(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		headers, err := json.Marshal(map[string]string{"X-CSRF-Token": GetCSRFToken(ctx)})
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="es"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		fmt.Fprintf(&b, `<title>%s · Panel del catálogo</title>`, templ.EscapeString(title))
		fmt.Fprintf(&b, `<script src="%s"></script><script src="%s"></script>`, htmxScript, removeMeScript)
		fmt.Fprintf(&b, `<style>%s</style></head>`, styles)
		fmt.Fprintf(&b, `<body hx-ext="remove-me" hx-headers="%s">`, templ.EscapeString(string(headers)))
		b.WriteString(`<header><strong>Panel del catálogo</strong><nav>`)
		active := GetActivePath(ctx)
		for _, l := range navLinks {
			if l.Audit && !IsAuditEnabled(ctx) {
				continue
			}
			class := ""
			if l.Href == active {
				class = ` class="active"`
			}
			fmt.Fprintf(&b, ` <a href="%s"%s>%s</a>`, l.Href, class, templ.EscapeString(l.Label))
		}
		b.WriteString(`</nav></header>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if err := notify.Region().Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<main>`); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `</main></body></html>`)
		return err
	})
}
