package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/atlas-api/internal/cache"
	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/settings"
	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
	"github.com/nulzo/atlas-api/internal/store/sqlite"
	"github.com/nulzo/atlas-api/internal/supabase"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// MockProvider implements llm.Provider for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "openrouter" }
func (m *MockProvider) Type() string { return "openrouter" }

func (m *MockProvider) Catalog(ctx context.Context) ([]catalog.RawModel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.RawModel), args.Error(1)
}

func (m *MockProvider) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ChatResponse), args.Error(1)
}

func (m *MockProvider) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan api.StreamResult), args.Error(1)
}

func (m *MockProvider) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockHostedDB implements HostedDB for testing
type MockHostedDB struct {
	mock.Mock
	enabled bool
}

func (m *MockHostedDB) Enabled() bool { return m.enabled }

func (m *MockHostedDB) Allowed(table string) bool {
	return table == "itineraries" || table == "trips"
}

func (m *MockHostedDB) Select(ctx context.Context, table string, query url.Values) (json.RawMessage, error) {
	args := m.Called(ctx, table, query)
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockHostedDB) Insert(ctx context.Context, table string, rows any) (json.RawMessage, error) {
	args := m.Called(ctx, table, rows)
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockHostedDB) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingIngestor struct {
	mu   sync.Mutex
	logs []model.RequestLog
}

func (r *recordingIngestor) Log(log *model.RequestLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
}

func (r *recordingIngestor) Start(context.Context) {}
func (r *recordingIngestor) Stop()                 {}

func (r *recordingIngestor) all() []model.RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RequestLog(nil), r.logs...)
}

type fixture struct {
	svc      Service
	provider *MockProvider
	hosted   *MockHostedDB
	ingestor *recordingIngestor
	settings *settings.Service
	repo     store.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f := &fixture{
		provider: &MockProvider{},
		hosted:   &MockHostedDB{enabled: true},
		ingestor: &recordingIngestor{},
		repo:     repo,
		settings: settings.NewService(settings.NewSQLStore(repo), settings.Settings{
			DefaultModel: "meta-llama/llama-3.1-8b-instruct:free",
			Keywords:     catalog.DefaultKeywords,
		}),
	}
	f.svc = NewService(Dependencies{
		Provider:       f.provider,
		Repo:           repo,
		Ingestor:       f.ingestor,
		Cache:          cache.NewMemoryCache(),
		Settings:       f.settings,
		HostedDB:       f.hosted,
		Catalog:        catalog.DefaultOptions(),
		CatalogTTL:     time.Minute,
		ItineraryTable: "itineraries",
	})
	return f
}

func rawModels(t *testing.T, body string) []catalog.RawModel {
	t.Helper()
	raws, err := catalog.ParseCatalog([]byte(body))
	require.NoError(t, err)
	return raws
}

const upstreamCatalog = `{"data": [
	{"id": "openai/gpt-4o", "pricing": {"prompt": "0.000005", "completion": "0.000015"}},
	{"id": "acme/widget-1", "pricing": {"prompt": "0.000001"}},
	{"id": "meta-llama/llama-3.1-8b-instruct:free", "pricing": {"prompt": "0", "completion": "0"}},
	{"id": "anthropic/claude-3-opus", "pricing": {"prompt": "1.5"}}
]}`

func TestListModels_RanksAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.On("Catalog", mock.Anything).Return(rawModels(t, upstreamCatalog), nil).Once()

	list, err := f.svc.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)

	assert.Equal(t, SourceUpstream, list.Source)
	require.Len(t, list.Data, 3)
	assert.Equal(t, "meta-llama/llama-3.1-8b-instruct:free", list.Data[0].ID)
	assert.Equal(t, catalog.TierFree, list.Data[0].Tier)
	assert.Equal(t, "openai/gpt-4o", list.Data[1].ID)
	assert.Equal(t, "$5.00/1M", list.Data[1].CostLabel)
	assert.Equal(t, catalog.TierPremium, list.Data[2].Tier)

	again, err := f.svc.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, list.Data, again.Data)

	f.provider.AssertExpectations(t)
}

func TestListModels_FallbackOnUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Catalog", mock.Anything).Return(nil, errors.New("connection refused"))

	list, err := f.svc.ListModels(context.Background(), ModelFilter{})
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, list.Source)
	assert.Equal(t, catalog.Pipeline(catalog.Fallback(), catalog.DefaultOptions()), list.Data)

	// the fallback is not cached
	_, err = f.svc.ListModels(context.Background(), ModelFilter{})
	require.NoError(t, err)
	f.provider.AssertNumberOfCalls(t, "Catalog", 2)
}

func TestListModels_ConcurrentMissesShareFetch(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.provider.On("Catalog", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(rawModels(t, upstreamCatalog), nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	lists := make([]*ModelList, 8)
	for i := range lists {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lists[i], _ = f.svc.ListModels(ctx, ModelFilter{})
		}()
	}

	// a cancelled caller must not fail the shared fetch
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)
	wg.Wait()

	f.provider.AssertNumberOfCalls(t, "Catalog", 1)
	for _, list := range lists {
		require.NotNil(t, list)
		assert.Len(t, list.Data, 3)
	}
}

func TestListModels_FilterAndKeywordSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.On("Catalog", mock.Anything).Return(rawModels(t, upstreamCatalog), nil)

	_, err := f.settings.Update(ctx, api.SettingsRequest{Keywords: []string{"widget"}})
	require.NoError(t, err)

	list, err := f.svc.ListModels(ctx, ModelFilter{Tier: catalog.TierCheap})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "acme/widget-1", list.Data[0].ID)

	list, err = f.svc.ListModels(ctx, ModelFilter{Provider: "META-LLAMA"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Meta-llama", list.Data[0].Provider)
}

func TestChat_DefaultsAndSystemPrompt(t *testing.T) {
	ctx := WithClient(context.Background(), Client{KeyID: "k1", RequestID: "rid-1", IP: "10.0.0.1"})
	f := newFixture(t)

	prompt := "You are a travel planner."
	_, err := f.settings.Update(ctx, api.SettingsRequest{SystemPrompt: &prompt})
	require.NoError(t, err)

	req := &api.ChatRequest{Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "Plan Rome"}}}}

	f.provider.On("Chat", mock.Anything, mock.MatchedBy(func(r *api.ChatRequest) bool {
		return r.Model == "meta-llama/llama-3.1-8b-instruct:free" &&
			len(r.Messages) == 2 &&
			r.Messages[0].Role == "system" &&
			r.Messages[0].Content.String() == prompt
	})).Return(&api.ChatResponse{
		ID:      "gen-1",
		Choices: []api.Choice{{FinishReason: "stop"}},
		Usage:   &api.ResponseUsage{PromptTokens: 12, CompletionTokens: 30},
	}, nil)

	resp, err := f.svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", resp.ID)

	// caller's request untouched
	assert.Empty(t, req.Model)
	assert.Len(t, req.Messages, 1)

	logs := f.ingestor.all()
	require.Len(t, logs, 1)
	assert.Equal(t, "k1", logs[0].APIKeyID)
	assert.Equal(t, "rid-1", logs[0].RequestID)
	assert.Equal(t, "gen-1", logs[0].UpstreamID)
	assert.Equal(t, 12, logs[0].InputTokens)
	assert.Equal(t, 30, logs[0].OutputTokens)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.NotEmpty(t, logs[0].ID)
}

func TestChat_UpstreamErrorIsProblem(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := f.svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "openai/gpt-4o",
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "hi"}}},
	})

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadGateway, problem.Status)

	logs := f.ingestor.all()
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusBadGateway, logs[0].StatusCode)
	assert.Equal(t, "boom", logs[0].ErrorMessage)
}

func TestStreamChat_RelaysAndLogs(t *testing.T) {
	f := newFixture(t)

	upstream := make(chan api.StreamResult, 2)
	upstream <- api.StreamResult{Response: &api.ChatResponse{ID: "gen-2", Choices: []api.Choice{{Delta: &api.ChatMessage{Content: api.Content{Text: "Ro"}}}}}}
	upstream <- api.StreamResult{Response: &api.ChatResponse{ID: "gen-2", Choices: []api.Choice{{FinishReason: "stop"}}, Usage: &api.ResponseUsage{PromptTokens: 3, CompletionTokens: 5}}}
	close(upstream)

	f.provider.On("Stream", mock.Anything, mock.MatchedBy(func(r *api.ChatRequest) bool { return r.Stream })).
		Return((<-chan api.StreamResult)(upstream), nil)

	out, err := f.svc.StreamChat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "hi"}}},
	})
	require.NoError(t, err)

	var got []api.StreamResult
	for r := range out {
		got = append(got, r)
	}
	assert.Len(t, got, 2)

	assert.Eventually(t, func() bool { return len(f.ingestor.all()) == 1 }, time.Second, 10*time.Millisecond)
	log := f.ingestor.all()[0]
	assert.True(t, log.IsStreamed)
	assert.Equal(t, "gen-2", log.UpstreamID)
	assert.Equal(t, "stop", log.FinishReason)
	assert.Equal(t, 5, log.OutputTokens)
}

func TestSaveItinerary(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid documents are rejected with the report", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.SaveItinerary(ctx, []byte(`{"tripInfo": {"from": "Rome"}}`))

		var problem *api.Problem
		require.ErrorAs(t, err, &problem)
		assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
		assert.Contains(t, problem.Extensions, "report")
		f.hosted.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("valid documents are inserted", func(t *testing.T) {
		f := newFixture(t)
		doc := `{"tripInfo": {"from": "Rome", "to": "Paris", "duration": 2}, "itinerary": [{"day": 1, "movements": []}]}`

		f.hosted.On("Insert", mock.Anything, "itineraries", mock.MatchedBy(func(row map[string]any) bool {
			return row["trip_from"] == "Rome" && row["trip_to"] == "Paris" && row["duration"] == float64(2)
		})).Return(json.RawMessage(`[{"id": 1}]`), nil)

		saved, err := f.svc.SaveItinerary(ctx, []byte(doc))
		require.NoError(t, err)
		assert.True(t, saved.Report.Valid)
		assert.Equal(t, int64(1), gjson.GetBytes(saved.Rows, "0.id").Int())
	})

	t.Run("hosted database disabled", func(t *testing.T) {
		f := newFixture(t)
		f.hosted.enabled = false
		doc := `{"tripInfo": {"from": "A", "to": "B", "duration": 1}, "itinerary": []}`

		_, err := f.svc.SaveItinerary(ctx, []byte(doc))

		var problem *api.Problem
		require.ErrorAs(t, err, &problem)
		assert.Equal(t, http.StatusServiceUnavailable, problem.Status)
	})
}

func TestHostedProxy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.QueryTable(ctx, "users", nil)
	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusNotFound, problem.Status)

	_, err = f.svc.InsertRows(ctx, "trips", json.RawMessage(`"nope"`))
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)

	q := url.Values{"select": {"id"}}
	f.hosted.On("Select", mock.Anything, "trips", q).Return(json.RawMessage(`[]`), nil)
	rows, err := f.svc.QueryTable(ctx, "trips", q)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(rows))

	f.hosted.On("Insert", mock.Anything, "trips", mock.Anything).Return(json.RawMessage(nil), supabase.ErrTableNotAllowed).Once()
	_, err = f.svc.InsertRows(ctx, "trips", json.RawMessage(`{"a": 1}`))
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusNotFound, problem.Status)
}

func TestUpdateSettings_WritesAudit(t *testing.T) {
	ctx := WithClient(context.Background(), Client{KeyID: "admin-1", IP: "127.0.0.1"})
	f := newFixture(t)

	next := "openai/gpt-4o-mini"
	updated, err := f.svc.UpdateSettings(ctx, api.SettingsRequest{DefaultModel: &next})
	require.NoError(t, err)
	assert.Equal(t, next, updated.DefaultModel)

	events, err := f.repo.Audit().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "admin-1", events[0].Actor)
	assert.Equal(t, "settings", events[0].TargetResource)

	bad := "nope"
	_, err = f.svc.UpdateSettings(ctx, api.SettingsRequest{DefaultModel: &bad})
	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
}

func TestResetSettings(t *testing.T) {
	ctx := WithClient(context.Background(), Client{KeyID: "admin-1"})
	f := newFixture(t)

	next := "openai/gpt-4o-mini"
	_, err := f.svc.UpdateSettings(ctx, api.SettingsRequest{DefaultModel: &next})
	require.NoError(t, err)

	reset, err := f.svc.ResetSettings(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, next, reset.DefaultModel)

	current, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, reset, current)

	events, err := f.svc.AuditLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	actions := []string{events[0].Action, events[1].Action}
	assert.ElementsMatch(t, []string{"update", "reset"}, actions)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Health", mock.Anything).Return(errors.New("down"))
	f.hosted.On("Ping", mock.Anything).Return(nil)

	checks := f.svc.Health(context.Background())

	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["hosted_db"])
	assert.Equal(t, "error: down", checks["llm"])
}
