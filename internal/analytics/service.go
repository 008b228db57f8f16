package analytics

import (
	"context"
	"fmt"

	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
)

const (
	defaultDays = 7
	maxDays     = 90
	topModels   = 5
)

type Overview struct {
	Days          int                `json:"days"`
	TotalRequests int                `json:"total_requests"`
	TotalTokens   int                `json:"total_tokens"`
	ErrorRate     float64            `json:"error_rate"`
	Daily         []model.DailyStats `json:"daily"`
	TopModels     []model.ModelUsage `json:"top_models"`
}

type Service interface {
	GetUsageOverview(ctx context.Context, days int) (*Overview, error)
	GetRequest(ctx context.Context, id string) (*model.RequestLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

// GetUsageOverview aggregates the last days of traffic. Out of range values
// are clamped to [1, 90] with 0 meaning a week.
func (s *service) GetUsageOverview(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = defaultDays
	}
	days = min(days, maxDays)

	daily, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	top, err := s.repo.Requests().TopModels(ctx, days, topModels)
	if err != nil {
		return nil, fmt.Errorf("top models: %w", err)
	}

	ov := &Overview{Days: days, Daily: daily, TopModels: top}
	errorsSeen := 0
	for _, d := range daily {
		ov.TotalRequests += d.TotalRequests
		ov.TotalTokens += d.TotalTokens
		errorsSeen += d.ErrorCount
	}
	if ov.TotalRequests > 0 {
		ov.ErrorRate = float64(errorsSeen) / float64(ov.TotalRequests)
	}
	return ov, nil
}

// GetRequest returns one logged request. Misses surface store.ErrNotFound.
func (s *service) GetRequest(ctx context.Context, id string) (*model.RequestLog, error) {
	log, err := s.repo.Requests().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", id, err)
	}
	return log, nil
}
