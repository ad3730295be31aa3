package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
)

// --- Mock Repository ---

// mockAuditRepo implements AuditRepository for testing.
type mockAuditRepo struct {
	logFn        func(ctx context.Context, entry *AuditEntry) error
	listRecentFn func(ctx context.Context, entityType string, limit, offset int) ([]AuditEntry, int, error)
	getSummaryFn func(ctx context.Context) (*ActivitySummary, error)
}

func (m *mockAuditRepo) Log(ctx context.Context, entry *AuditEntry) error {
	if m.logFn != nil {
		return m.logFn(ctx, entry)
	}
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, entityType string, limit, offset int) ([]AuditEntry, int, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, entityType, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockAuditRepo) GetSummary(ctx context.Context) (*ActivitySummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(ctx)
	}
	return &ActivitySummary{}, nil
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Log Tests ---

func TestLog_Success(t *testing.T) {
	var stored *AuditEntry
	svc := NewAuditService(&mockAuditRepo{
		logFn: func(_ context.Context, entry *AuditEntry) error {
			stored = entry
			return nil
		},
	})

	err := svc.Log(context.Background(), &AuditEntry{
		Action:     ActionEntityCreated,
		EntityType: "players",
		EntityName: "Juan",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.EntityName != "Juan" {
		t.Errorf("expected entry to reach repository, got %+v", stored)
	}
}

func TestLog_MissingFields(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{})

	tests := []struct {
		name  string
		entry *AuditEntry
	}{
		{"missing action", &AuditEntry{EntityType: "players"}},
		{"missing entity type", &AuditEntry{Action: ActionEntityCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAppError(t, svc.Log(context.Background(), tt.entry), http.StatusBadRequest)
		})
	}
}

func TestLog_RepoError(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{
		logFn: func(context.Context, *AuditEntry) error { return errors.New("db down") },
	})

	err := svc.Log(context.Background(), &AuditEntry{Action: ActionCollectionDeleted, EntityType: "enemies"})
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- GetActivity Tests ---

func TestGetActivity_ClampsPage(t *testing.T) {
	var gotOffset, gotLimit int
	var gotType string
	svc := NewAuditService(&mockAuditRepo{
		listRecentFn: func(_ context.Context, entityType string, limit, offset int) ([]AuditEntry, int, error) {
			gotType, gotLimit, gotOffset = entityType, limit, offset
			return []AuditEntry{{ID: 1}}, 1, nil
		},
	})

	entries, total, err := svc.GetActivity(context.Background(), "enemies", -3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOffset != 0 || gotLimit != perPage || gotType != "enemies" {
		t.Errorf("unexpected query type=%q limit=%d offset=%d", gotType, gotLimit, gotOffset)
	}
	if len(entries) != 1 || total != 1 {
		t.Errorf("unexpected result %d entries, total %d", len(entries), total)
	}
}

func TestGetActivity_SecondPageOffset(t *testing.T) {
	var gotOffset int
	svc := NewAuditService(&mockAuditRepo{
		listRecentFn: func(_ context.Context, _ string, _, offset int) ([]AuditEntry, int, error) {
			gotOffset = offset
			return nil, 0, nil
		},
	})

	if _, _, err := svc.GetActivity(context.Background(), "", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOffset != perPage {
		t.Errorf("expected offset %d, got %d", perPage, gotOffset)
	}
}

func TestGetActivity_RepoError(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{
		listRecentFn: func(context.Context, string, int, int) ([]AuditEntry, int, error) {
			return nil, 0, errors.New("timeout")
		},
	})

	_, _, err := svc.GetActivity(context.Background(), "", 1)
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- Noop Tests ---

func TestNoopService(t *testing.T) {
	svc := NewNoopService()
	if svc.Enabled() {
		t.Error("expected noop service to report disabled")
	}
	if err := svc.Log(context.Background(), &AuditEntry{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

// --- View Tests ---

func TestActivityFeed_RendersEntries(t *testing.T) {
	entries := []AuditEntry{
		{Action: ActionEntityUpdated, EntityType: "enemies", EntityIndex: "1", EntityName: "Orc <b>", ClientIP: "10.0.0.1", CreatedAt: time.Now()},
	}

	var buf bytes.Buffer
	if err := ActivityFeed(entries, 120, 2, perPage, "enemies").Render(context.Background(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := buf.String()

	if !strings.Contains(html, "actualizó enemigos #1 «Orc &lt;b&gt;» (10.0.0.1)") {
		t.Errorf("unexpected feed line in %q", html)
	}
	if !strings.Contains(html, "Página 2 de 3") {
		t.Error("expected pagination")
	}
	if !strings.Contains(html, "page=3") || !strings.Contains(html, "type=enemies") {
		t.Error("expected next link to keep the filter")
	}
}
