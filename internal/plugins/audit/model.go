// Package audit records the catalog mutations made through the panel. Every
// create, update and delete-all that the catalog API accepted is captured as
// an AuditEntry in the audit_log table, and the activity feed lists them.
//
// This is an optional plugin: it only observes changes and never blocks
// them. With AUDIT_ENABLED=false a no-op service is wired instead.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb". The values must
// match the ENUM on audit_log.action.

const (
	// ActionEntityCreated is logged when a record is created.
	ActionEntityCreated = "entity.created"

	// ActionEntityUpdated is logged when the record at an index is replaced.
	ActionEntityUpdated = "entity.updated"

	// ActionCollectionDeleted is logged when a whole collection is deleted.
	ActionCollectionDeleted = "collection.deleted"
)

// AuditEntry represents a single recorded action. EntityIndex is the
// collection position an update targeted; records have no durable id.
type AuditEntry struct {
	ID          int64          `json:"id"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityIndex string         `json:"entityIndex,omitempty"`
	EntityName  string         `json:"entityName,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	ClientIP    string         `json:"clientIp,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ActivitySummary holds aggregate figures shown above the activity feed.
type ActivitySummary struct {
	// TotalActions is the number of recorded entries.
	TotalActions int `json:"totalActions"`

	// LastActionAt is the time of the newest entry. Nil when there is none.
	LastActionAt *time.Time `json:"lastActionAt,omitempty"`

	// ActiveSessions counts distinct panel sessions in the last 30 days.
	ActiveSessions int `json:"activeSessions"`
}

// actionLabels are the feed texts per action.
var actionLabels = map[string]string{
	ActionEntityCreated:     "creó",
	ActionEntityUpdated:     "actualizó",
	ActionCollectionDeleted: "eliminó todos los registros de",
}

// ActionLabel returns the feed text for an action, or the action itself.
func ActionLabel(action string) string {
	if l, ok := actionLabels[action]; ok {
		return l
	}
	return action
}
