// Package stats shows the catalog totals reported by the catalog API on the
// dashboard. The counters are read on every request; nothing is cached.
package stats

// Placeholder is shown in a counter whose value could not be loaded.
const Placeholder = "—"

// msgLoadFailed is the error notification raised when the totals fail.
const msgLoadFailed = "Error al cargar estadísticas"

// Counters are the dashboard totals. A nil Counters renders placeholders.
type Counters struct {
	Players int `json:"players"`
	Enemies int `json:"enemies"`
}
