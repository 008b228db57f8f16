package store

import (
	"context"
	"errors"
	"time"

	"github.com/nulzo/atlas-api/internal/store/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Settings() SettingsRepository
	Requests() RequestRepository
	Audit() AuditRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// SettingsRepository is a flat key/value table for administrator settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

type RequestRepository interface {
	// Log stores a completed request.
	Log(ctx context.Context, log *model.RequestLog) error
	// LogBatch stores many requests in one statement.
	LogBatch(ctx context.Context, logs []model.RequestLog) error
	// GetByID matches either the log id or the request id it was served under.
	GetByID(ctx context.Context, id string) (*model.RequestLog, error)
	// GetDailyStats returns aggregated stats grouped by day, newest first.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
	// TopModels ranks models by request count over the last days.
	TopModels(ctx context.Context, days, limit int) ([]model.ModelUsage, error)
	// Prune deletes logs created before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditRepository interface {
	// Log records an audit event.
	Log(ctx context.Context, event *model.AuditEvent) error
	Recent(ctx context.Context, limit int) ([]model.AuditEvent, error)
}
