package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for audit log operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Log inserts a new audit entry into the database.
	Log(ctx context.Context, entry *AuditEntry) error

	// ListRecent returns entries most recent first, optionally restricted to
	// one entity type (empty means all), with the total for pagination.
	ListRecent(ctx context.Context, entityType string, limit, offset int) ([]AuditEntry, int, error)

	// GetSummary returns aggregate figures over the whole log.
	GetSummary(ctx context.Context) (*ActivitySummary, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log inserts a new audit entry. The details map is serialized to JSON
// before storage. Nil details are stored as SQL NULL.
func (r *auditRepository) Log(ctx context.Context, entry *AuditEntry) error {
	query := `INSERT INTO audit_log (action, entity_type, entity_index, entity_name, session_id, client_ip, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.Action, entry.EntityType, entry.EntityIndex, entry.EntityName,
		entry.SessionID, entry.ClientIP, detailsJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id

	return nil
}

// ListRecent returns audit entries ordered by most recent first.
func (r *auditRepository) ListRecent(ctx context.Context, entityType string, limit, offset int) ([]AuditEntry, int, error) {
	where := ""
	args := []any{}
	if entityType != "" {
		where = "WHERE entity_type = ?"
		args = append(args, entityType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, action, entity_type, entity_index, entity_name,
	                 session_id, client_ip, details, created_at
	          FROM audit_log ` + where + `
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetSummary computes the feed header figures.
func (r *auditRepository) GetSummary(ctx context.Context) (*ActivitySummary, error) {
	summary := &ActivitySummary{}

	var lastAction sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(created_at) FROM audit_log`,
	).Scan(&summary.TotalActions, &lastAction); err != nil {
		return nil, fmt.Errorf("querying audit totals: %w", err)
	}
	if lastAction.Valid {
		summary.LastActionAt = &lastAction.Time
	}

	sessionsQuery := `SELECT COUNT(DISTINCT session_id) FROM audit_log
	                  WHERE created_at >= DATE_SUB(NOW(), INTERVAL 30 DAY)`
	if err := r.db.QueryRowContext(ctx, sessionsQuery).Scan(&summary.ActiveSessions); err != nil {
		return nil, fmt.Errorf("querying active sessions: %w", err)
	}

	return summary, nil
}

// scanAuditRows scans rows from an audit_log query into AuditEntry slices.
// Expects columns: id, action, entity_type, entity_index, entity_name,
// session_id, client_ip, details, created_at.
func scanAuditRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Action, &e.EntityType, &e.EntityIndex, &e.EntityName,
			&e.SessionID, &e.ClientIP, &detailsJSON, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				// Non-fatal: keep the feed readable.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, nil
}
