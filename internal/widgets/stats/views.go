package stats

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// regionID is the DOM id of the counters block.
const regionID = "stats"

// CountersView renders the two counters. Nil counters render placeholders.
// Its refresh button reloads it through GET /stats.
func CountersView(c *Counters) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		players, enemies := Placeholder, Placeholder
		if c != nil {
			players = strconv.Itoa(c.Players)
			enemies = strconv.Itoa(c.Enemies)
		}

		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s" class="stats">`, regionID)
		fmt.Fprintf(&b, `<div class="stat"><span class="stat-value" id="total-players">%s</span><span>Jugadores</span></div>`, players)
		fmt.Fprintf(&b, `<div class="stat"><span class="stat-value" id="total-enemies">%s</span><span>Enemigos</span></div>`, enemies)
		fmt.Fprintf(&b, `<button hx-get="/stats" hx-target="#%s" hx-swap="outerHTML">Actualizar</button></div>`, regionID)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Dashboard renders the landing page body: the counters and links to the
// two management pages.
func Dashboard(c *Counters) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>Panel de administración</h1>`); err != nil {
			return err
		}
		if err := CountersView(c).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<div class="toolbar"><a class="btn" href="/players">Gestionar jugadores</a><a class="btn" href="/enemies">Gestionar enemigos</a></div>`)
		return err
	})
}
