package audit

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// timeLayout is how entry times are shown in the feed.
const timeLayout = "02/01/2006 15:04"

// entityTypeLabels maps API collection names to feed texts.
var entityTypeLabels = map[string]string{
	"players": "jugadores",
	"enemies": "enemigos",
}

// ActivityPage wraps the feed with the summary header.
func ActivityPage(summary *ActivitySummary, feed templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Actividad</h1><div class="counters">`)
		fmt.Fprintf(&b, `<div class="counter">Acciones: %d</div>`, summary.TotalActions)
		last := "—"
		if summary.LastActionAt != nil {
			last = summary.LastActionAt.Local().Format(timeLayout)
		}
		fmt.Fprintf(&b, `<div class="counter">Última: %s</div>`, templ.EscapeString(last))
		fmt.Fprintf(&b, `<div class="counter">Sesiones (30 días): %d</div></div>`, summary.ActiveSessions)
		b.WriteString(`<nav class="toolbar">`)
		for _, f := range []struct{ value, label string }{{"", "Todo"}, {"players", "Jugadores"}, {"enemies", "Enemigos"}} {
			fmt.Fprintf(&b, `<a href="%s" hx-get="%s" hx-target="#activity-feed" hx-swap="outerHTML">%s</a> `,
				feedURL(f.value, 1), feedURL(f.value, 1), f.label)
		}
		b.WriteString(`</nav>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		return feed.Render(ctx, w)
	})
}

// ActivityFeed renders one page of entries with pagination links.
func ActivityFeed(entries []AuditEntry, total, page, pageSize int, entityType string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section id="activity-feed">`)
		if len(entries) == 0 {
			b.WriteString(`<p>No hay actividad registrada.</p>`)
		} else {
			b.WriteString(`<ul class="activity">`)
			for _, e := range entries {
				fmt.Fprintf(&b, `<li><time datetime="%s">%s</time> %s</li>`,
					e.CreatedAt.UTC().Format(time.RFC3339),
					e.CreatedAt.Local().Format(timeLayout),
					templ.EscapeString(describe(e)))
			}
			b.WriteString(`</ul>`)
		}

		pages := (total + pageSize - 1) / pageSize
		if pages > 1 {
			b.WriteString(`<nav class="pagination">`)
			if page > 1 {
				u := feedURL(entityType, page-1)
				fmt.Fprintf(&b, `<a href="%s" hx-get="%s" hx-target="#activity-feed" hx-swap="outerHTML">Anterior</a> `, u, u)
			}
			fmt.Fprintf(&b, `<span>Página %d de %d</span>`, page, pages)
			if page < pages {
				u := feedURL(entityType, page+1)
				fmt.Fprintf(&b, ` <a href="%s" hx-get="%s" hx-target="#activity-feed" hx-swap="outerHTML">Siguiente</a>`, u, u)
			}
			b.WriteString(`</nav>`)
		}
		b.WriteString(`</section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// describe builds the feed line of an entry, e.g.
// "creó jugadores «Juan» (10.0.0.1)".
func describe(e AuditEntry) string {
	var b strings.Builder
	b.WriteString(ActionLabel(e.Action))
	b.WriteString(" ")
	if l, ok := entityTypeLabels[e.EntityType]; ok {
		b.WriteString(l)
	} else {
		b.WriteString(e.EntityType)
	}
	if e.EntityIndex != "" {
		b.WriteString(" #" + e.EntityIndex)
	}
	if e.EntityName != "" {
		b.WriteString(" «" + e.EntityName + "»")
	}
	if e.ClientIP != "" {
		b.WriteString(" (" + e.ClientIP + ")")
	}
	return b.String()
}

func feedURL(entityType string, page int) string {
	q := url.Values{}
	if entityType != "" {
		q.Set("type", entityType)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/activity"
	}
	return "/activity?" + templ.EscapeString(q.Encode())
}
