package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/atlas-api/internal/analytics"
	"github.com/nulzo/atlas-api/internal/cache"
	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/itinerary"
	"github.com/nulzo/atlas-api/internal/llm"
	"github.com/nulzo/atlas-api/internal/settings"
	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
	"github.com/nulzo/atlas-api/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service is the business layer behind the HTTP handlers.
type Service interface {
	ListModels(ctx context.Context, filter ModelFilter) (*ModelList, error)

	ValidateItinerary(doc []byte) itinerary.Report
	SaveItinerary(ctx context.Context, doc []byte) (*SavedItinerary, error)

	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)

	QueryTable(ctx context.Context, table string, query url.Values) (json.RawMessage, error)
	InsertRows(ctx context.Context, table string, rows json.RawMessage) (json.RawMessage, error)

	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, req api.SettingsRequest) (settings.Settings, error)
	ResetSettings(ctx context.Context) (settings.Settings, error)
	AuditLog(ctx context.Context, limit int) ([]model.AuditEvent, error)

	// Health runs a readiness check per dependency. Values are "ok" or the error.
	Health(ctx context.Context) map[string]string
}

// HostedDB is the subset of the PostgREST client the gateway needs.
type HostedDB interface {
	Enabled() bool
	Allowed(table string) bool
	Select(ctx context.Context, table string, query url.Values) (json.RawMessage, error)
	Insert(ctx context.Context, table string, rows any) (json.RawMessage, error)
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Logger         *zap.Logger
	Provider       llm.Provider
	Repo           store.Repository
	Ingestor       analytics.Ingestor
	Cache          cache.Service
	Settings       *settings.Service
	HostedDB       HostedDB
	Catalog        catalog.Options
	CatalogTTL     time.Duration
	ItineraryTable string
}

type service struct {
	logger         *zap.Logger
	provider       llm.Provider
	repo           store.Repository
	ingestor       analytics.Ingestor
	cache          cache.Service
	settings       *settings.Service
	hosted         HostedDB
	catalogOpts    catalog.Options
	catalogTTL     time.Duration
	itineraryTable string
	fetches        singleflight.Group
}

func NewService(deps Dependencies) Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{
		logger:         deps.Logger,
		provider:       deps.Provider,
		repo:           deps.Repo,
		ingestor:       deps.Ingestor,
		cache:          deps.Cache,
		settings:       deps.Settings,
		hosted:         deps.HostedDB,
		catalogOpts:    deps.Catalog.WithDefaults(),
		catalogTTL:     deps.CatalogTTL,
		itineraryTable: deps.ItineraryTable,
	}
}

// currentSettings never fails; a broken settings backend degrades to defaults.
func (s *service) currentSettings(ctx context.Context) settings.Settings {
	cur, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		return s.settings.Defaults()
	}
	return cur
}

func (s *service) Settings(ctx context.Context) (settings.Settings, error) {
	cur, err := s.settings.Get(ctx)
	if err != nil {
		return settings.Settings{}, api.InternalError("Failed to load settings", err)
	}
	return cur, nil
}

func (s *service) UpdateSettings(ctx context.Context, req api.SettingsRequest) (settings.Settings, error) {
	updated, err := s.settings.Update(ctx, req)
	if err != nil {
		return settings.Settings{}, err
	}

	details, _ := json.Marshal(req)
	s.audit(ctx, "update", string(details))

	return updated, nil
}

func (s *service) ResetSettings(ctx context.Context) (settings.Settings, error) {
	if err := s.settings.Reset(ctx); err != nil {
		return settings.Settings{}, api.InternalError("Failed to reset settings", err)
	}
	s.audit(ctx, "reset", "{}")
	return s.settings.Defaults(), nil
}

// MaxAuditEvents caps a single audit listing.
const MaxAuditEvents = 200

func (s *service) AuditLog(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > MaxAuditEvents {
		limit = MaxAuditEvents
	}
	events, err := s.repo.Audit().Recent(ctx, limit)
	if err != nil {
		return nil, api.InternalError("Failed to load audit log", err)
	}
	return events, nil
}

// audit records a settings change. Failures are logged, never returned.
func (s *service) audit(ctx context.Context, action, details string) {
	client := ClientFrom(ctx)
	event := &model.AuditEvent{
		ID:             uuid.NewString(),
		Actor:          client.KeyID,
		TargetResource: "settings",
		Action:         action,
		DetailsJSON:    details,
		IPAddress:      client.IP,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Audit().Log(ctx, event); err != nil {
		s.logger.Error("failed to write audit event", zap.String("action", action), zap.Error(err))
	}
}

func (s *service) Health(ctx context.Context) map[string]string {
	checks := map[string]string{
		"database": status(s.repo.Ping(ctx)),
		"llm":      status(s.provider.Health(ctx)),
	}
	if s.hosted != nil && s.hosted.Enabled() {
		checks["hosted_db"] = status(s.hosted.Ping(ctx))
	}
	return checks
}

func status(err error) string {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}
