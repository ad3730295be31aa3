package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
)

// perPage is the number of audit entries shown per page in the activity feed.
const perPage = 50

// AuditService handles business logic for the audit log. It validates inputs,
// enforces limits, and delegates persistence to the repository.
type AuditService interface {
	// Log records an audit entry. Errors are logged here, so callers may
	// ignore them: an audit failure must not undo a catalog change.
	Log(ctx context.Context, entry *AuditEntry) error

	// GetActivity returns one page of the feed, optionally filtered by
	// entity type, plus the total entry count.
	GetActivity(ctx context.Context, entityType string, page int) ([]AuditEntry, int, error)

	// GetSummary returns aggregate figures for the feed header.
	GetSummary(ctx context.Context) (*ActivitySummary, error)

	// Enabled reports whether entries are actually stored.
	Enabled() bool
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Log validates and persists an audit entry.
func (s *auditService) Log(ctx context.Context, entry *AuditEntry) error {
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}
	if entry.EntityType == "" {
		return apperror.NewBadRequest("entity type is required for audit entry")
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit log entry",
			slog.String("action", entry.Action),
			slog.String("entity_type", entry.EntityType),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit entry: %w", err))
	}

	return nil
}

// GetActivity returns the paginated feed. Pages are 1-indexed; invalid page
// numbers are clamped to 1.
func (s *auditService) GetActivity(ctx context.Context, entityType string, page int) ([]AuditEntry, int, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	entries, total, err := s.repo.ListRecent(ctx, entityType, perPage, offset)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing activity: %w", err))
	}

	return entries, total, nil
}

// GetSummary returns the feed header figures.
func (s *auditService) GetSummary(ctx context.Context) (*ActivitySummary, error) {
	summary, err := s.repo.GetSummary(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("getting activity summary: %w", err))
	}
	return summary, nil
}

func (s *auditService) Enabled() bool { return true }

// noopService is wired when the audit log is disabled.
type noopService struct{}

// NewNoopService returns an AuditService that stores nothing.
func NewNoopService() AuditService { return noopService{} }

func (noopService) Log(context.Context, *AuditEntry) error { return nil }

func (noopService) GetActivity(context.Context, string, int) ([]AuditEntry, int, error) {
	return nil, 0, nil
}

func (noopService) GetSummary(context.Context) (*ActivitySummary, error) {
	return &ActivitySummary{}, nil
}

func (noopService) Enabled() bool { return false }
