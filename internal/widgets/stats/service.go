package stats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
)

// StatsAPI is the part of the catalog API client the widget needs.
type StatsAPI interface {
	Stats(ctx context.Context) (*catalogapi.Stats, error)
}

// StatsService defines the business logic contract for the dashboard totals.
type StatsService interface {
	// Counters fetches the current totals. Failures are returned as an
	// upstream AppError carrying the user-facing message.
	Counters(ctx context.Context) (*Counters, error)
}

// statsService implements StatsService on the catalog API.
type statsService struct {
	api StatsAPI
}

// NewStatsService creates a stats service backed by api.
func NewStatsService(api StatsAPI) StatsService {
	return &statsService{api: api}
}

// Counters implements StatsService.
func (s *statsService) Counters(ctx context.Context) (*Counters, error) {
	st, err := s.api.Stats(ctx)
	if err != nil {
		slog.Warn("loading catalog stats failed", slog.Any("error", err))
		return nil, apperror.NewUpstream(msgLoadFailed, fmt.Errorf("fetching stats: %w", err))
	}
	return &Counters{Players: st.TotalPlayers, Enemies: st.TotalEnemies}, nil
}
