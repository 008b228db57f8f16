package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Settings() store.SettingsRepository {
	return &settingsRepo{db: r.executor}
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

func (r *SqliteRepository) Audit() store.AuditRepository {
	return &auditRepo{db: r.executor}
}

type settingsRepo struct {
	db DB
}

func (r *settingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return value, err
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

func (r *settingsRepo) All(ctx context.Context) (map[string]string, error) {
	var rows []model.Setting
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value, updated_at FROM settings ORDER BY key`); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}

func (r *settingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

type requestRepo struct {
	db DB
}

const insertRequestLog = `
	INSERT INTO request_logs (
		id, request_id, api_key_id, model_id, provider_id, upstream_id, finish_reason,
		input_tokens, output_tokens, latency_ms, status_code, is_streamed,
		ip_address, user_agent, error_message, created_at
	) VALUES (
		:id, :request_id, :api_key_id, :model_id, :provider_id, :upstream_id, :finish_reason,
		:input_tokens, :output_tokens, :latency_ms, :status_code, :is_streamed,
		:ip_address, :user_agent, :error_message, :created_at
	)`

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	_, err := r.db.NamedExecContext(ctx, insertRequestLog, log)
	return err
}

func (r *requestRepo) LogBatch(ctx context.Context, logs []model.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}
	// sqlx expands a slice argument into a multi-row VALUES list
	_, err := r.db.NamedExecContext(ctx, insertRequestLog, logs)
	return err
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	var log model.RequestLog
	// request ids are caller supplied and may repeat; the newest wins
	err := r.db.GetContext(ctx, &log, `
		SELECT * FROM request_logs
		WHERE id = ? OR request_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, id, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	stats := []model.DailyStats{}
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as total_requests,
			COALESCE(SUM(input_tokens + output_tokens), 0) as total_tokens,
			COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0) as error_count,
			COALESCE(AVG(latency_ms), 0) as avg_latency
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date
		ORDER BY date DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}

func (r *requestRepo) TopModels(ctx context.Context, days, limit int) ([]model.ModelUsage, error) {
	usage := []model.ModelUsage{}
	query := `
		SELECT
			model_id,
			COUNT(*) as requests,
			COALESCE(SUM(input_tokens + output_tokens), 0) as tokens
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY model_id
		ORDER BY requests DESC, model_id
		LIMIT ?
	`
	err := r.db.SelectContext(ctx, &usage, query, fmt.Sprintf("-%d days", days), limit)
	return usage, err
}

func (r *requestRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM request_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type auditRepo struct {
	db DB
}

func (r *auditRepo) Log(ctx context.Context, event *model.AuditEvent) error {
	query := `
	INSERT INTO audit_events (id, actor, target_resource, action, details_json, ip_address, created_at)
	VALUES (:id, :actor, :target_resource, :action, :details_json, :ip_address, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, event)
	return err
}

func (r *auditRepo) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	events := []model.AuditEvent{}
	err := r.db.SelectContext(ctx, &events, `SELECT * FROM audit_events ORDER BY created_at DESC LIMIT ?`, limit)
	return events, err
}
