package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/atlas-api/internal/analytics"
	"github.com/nulzo/atlas-api/internal/cache"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/internal/platform/logger"
	"github.com/nulzo/atlas-api/internal/platform/otel"
	"github.com/nulzo/atlas-api/internal/platform/redisclient"
	"github.com/nulzo/atlas-api/internal/server"
	"github.com/nulzo/atlas-api/internal/settings"
	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/sqlite"
	"github.com/nulzo/atlas-api/internal/supabase"
	"github.com/nulzo/atlas-api/internal/version"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// register provider factories
	_ "github.com/nulzo/atlas-api/internal/llm/ollama"
	_ "github.com/nulzo/atlas-api/internal/llm/openrouter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if err := logger.Initialize(logCfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer(ctx, otel.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Version:     version.Version,
			Environment: cfg.Server.Env,
			SampleRatio: cfg.Tracing.SampleRatio,
			Pretty:      !cfg.IsProduction(),
		}, log)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = repo.Close() }()
	log.Info("database ready", zap.String("path", cfg.Database.Path))

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	cacheSvc := newCache(rdb)
	settingsSvc := settings.NewService(newSettingsStore(cfg, repo, rdb), settings.Settings{
		DefaultModel: cfg.LLM.DefaultModel,
		Keywords:     cfg.Catalog.Keywords,
	})

	provider, err := gateway.BootstrapProvider(ctx, cfg.LLM, log)
	if err != nil {
		return err
	}

	ingestor := analytics.NewIngestor(log, repo, analytics.IngestorOptions{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
		Retention:     cfg.Analytics.Retention,
	})
	// stopped explicitly after the HTTP server drains
	ingestor.Start(context.Background())

	hosted := supabase.New(cfg.HostedDB)
	if !hosted.Enabled() {
		log.Warn("hosted_db.url not set, itinerary storage and /v1/db are disabled")
	}

	svc := gateway.NewService(gateway.Dependencies{
		Logger:         log,
		Provider:       provider,
		Repo:           repo,
		Ingestor:       ingestor,
		Cache:          cacheSvc,
		Settings:       settingsSvc,
		HostedDB:       hosted,
		Catalog:        cfg.Catalog.Options,
		CatalogTTL:     cfg.Catalog.CacheTTL,
		ItineraryTable: cfg.HostedDB.ItineraryTable,
	})

	if len(cfg.Server.APIKeys) == 0 {
		log.Warn("server.api_keys is empty, /v1 is open to anonymous callers")
	}

	if cfg.Updates.Check {
		go checkForUpdates(ctx, log, cfg.Updates.Repo)
	}

	srv := server.New(cfg, log, svc, analytics.NewService(repo), version.Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	ingestor.Stop()

	return nil
}

func newCache(rdb *redis.Client) cache.Service {
	if rdb != nil {
		return cache.NewRedisCache(rdb, "atlas:cache:")
	}
	return cache.NewMemoryCache()
}

func newSettingsStore(cfg *config.Config, repo store.Repository, rdb *redis.Client) settings.Store {
	switch cfg.Settings.Backend {
	case "redis":
		return settings.NewRedisStore(rdb, cfg.Settings.RedisKey)
	case "file":
		return settings.NewFileStore(cfg.Settings.FilePath)
	default:
		return settings.NewSQLStore(repo)
	}
}

func checkForUpdates(ctx context.Context, log *zap.Logger, repo string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update, err := version.NewChecker().Check(ctx, repo, version.Version)
	if err != nil {
		log.Debug("update check skipped", zap.Error(err))
		return
	}
	if update != nil {
		log.Warn("You are running an outdated version",
			zap.String("current", update.Current),
			zap.String("latest", update.Latest),
			zap.String("url", update.URL),
		)
	}
}
