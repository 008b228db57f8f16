package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.Settings().Get(ctx, "default_model")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.Settings().Set(ctx, "default_model", "openai/gpt-4o"))
	require.NoError(t, repo.Settings().Set(ctx, "default_model", "anthropic/claude-3.5-sonnet"))
	require.NoError(t, repo.Settings().Set(ctx, "system_prompt", "plan trips"))

	v, err := repo.Settings().Get(ctx, "default_model")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", v)

	all, err := repo.Settings().All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"default_model": "anthropic/claude-3.5-sonnet",
		"system_prompt": "plan trips",
	}, all)

	require.NoError(t, repo.Settings().Delete(ctx, "system_prompt"))
	all, err = repo.Settings().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx store.Repository) error {
		require.NoError(t, tx.Settings().Set(ctx, "k", "v"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Settings().Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.WithTx(ctx, func(tx store.Repository) error {
		return tx.Settings().Set(ctx, "k", "v")
	}))
	v, err := repo.Settings().Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestRequests(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC()

	logs := make([]model.RequestLog, 0, 5)
	for i := range 5 {
		modelID := "openai/gpt-4o-mini"
		if i%2 == 1 {
			modelID = "meta-llama/llama-3.1-8b-instruct:free"
		}
		logs = append(logs, model.RequestLog{
			ID:           fmt.Sprintf("req-%d", i),
			ModelID:      modelID,
			InputTokens:  10,
			OutputTokens: 5,
			LatencyMS:    100,
			StatusCode:   200,
			CreatedAt:    now,
		})
	}
	logs[4].StatusCode = 502
	logs[2].RequestID = "rid-2"

	require.NoError(t, repo.Requests().LogBatch(ctx, logs))
	require.NoError(t, repo.Requests().Log(ctx, &model.RequestLog{
		ID: "old", ModelID: "openai/gpt-4o-mini", StatusCode: 200, CreatedAt: now.AddDate(0, 0, -30),
	}))

	got, err := repo.Requests().GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "meta-llama/llama-3.1-8b-instruct:free", got.ModelID)

	got, err = repo.Requests().GetByID(ctx, "rid-2")
	require.NoError(t, err)
	assert.Equal(t, "req-2", got.ID)

	_, err = repo.Requests().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	stats, err := repo.Requests().GetDailyStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 5, stats[0].TotalRequests)
	assert.Equal(t, 75, stats[0].TotalTokens)
	assert.Equal(t, 1, stats[0].ErrorCount)
	assert.InDelta(t, 100, stats[0].AverageLatency, 0.001)

	top, err := repo.Requests().TopModels(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "openai/gpt-4o-mini", top[0].ModelID)
	assert.Equal(t, 3, top[0].Requests)
	assert.Equal(t, 30, top[1].Tokens)
}

func TestRequests_EmptyWindow(t *testing.T) {
	stats, err := newRepo(t).Requests().GetDailyStats(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Now().UTC()

	for i, action := range []string{"settings.update", "settings.reset"} {
		require.NoError(t, repo.Audit().Log(ctx, &model.AuditEvent{
			ID:             fmt.Sprintf("evt-%d", i),
			Actor:          "admin",
			TargetResource: "settings",
			Action:         action,
			DetailsJSON:    `{}`,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := repo.Audit().Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "settings.reset", events[0].Action)
}

func TestOpen_ReopenIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "atlas.db")

	first, err := Open(path)
	require.NoError(t, err)
	v1, err := Migrate(first.db)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	v2, err := Migrate(second.db)
	require.NoError(t, err)

	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	assert.Equal(t, uint(len(ups)), v1)
	assert.Equal(t, v1, v2)
}

func TestRequests_Prune(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.Requests().LogBatch(ctx, []model.RequestLog{
		{ID: "fresh", ModelID: "openai/gpt-4o", StatusCode: 200, CreatedAt: now},
		{ID: "stale-1", ModelID: "openai/gpt-4o", StatusCode: 200, CreatedAt: now.AddDate(0, 0, -40)},
		{ID: "stale-2", ModelID: "openai/gpt-4o", StatusCode: 200, CreatedAt: now.AddDate(0, 0, -31)},
	}))

	n, err := repo.Requests().Prune(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Requests().GetByID(ctx, "stale-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.Requests().GetByID(ctx, "fresh")
	assert.NoError(t, err)
}
