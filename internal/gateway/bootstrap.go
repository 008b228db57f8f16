package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/nulzo/atlas-api/internal/cli"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/llm"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

// BootstrapProvider builds the configured LLM provider and probes it. An
// unhealthy upstream is only a warning: listings fall back to the curated
// catalog and chat calls surface the upstream error.
func BootstrapProvider(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (llm.Provider, error) {
	provider, err := llm.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Type, err)
	}

	if cfg.APIKey == "" && cfg.Type != llm.Ollama {
		log.Warn(fmt.Sprintf("%s %s %s",
			cli.WarningSign(),
			cli.Stylize(fmt.Sprintf("%s\t", provider.Name()), cli.Gray),
			cli.Stylize("No API key configured, upstream calls will likely be rejected", cli.Yellow),
		))
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := provider.Health(healthCtx); err != nil {
		log.Warn("Provider unhealthy, catalog will use the fallback list",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
		return provider, nil
	}

	log.Info(fmt.Sprintf("%s %s", cli.CheckMark(), cli.Stylize(provider.Name()+" ready", cli.Green)),
		zap.String("type", provider.Type()),
		zap.String("base_url", cfg.BaseURL),
	)
	return provider, nil
}
