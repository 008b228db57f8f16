package gateway

import (
	"context"
	"errors"

	"github.com/nulzo/atlas-api/internal/cache"
	"github.com/nulzo/atlas-api/internal/catalog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Where a listing's catalog came from.
const (
	SourceUpstream = "upstream"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

type ModelFilter struct {
	Tier     catalog.Tier
	Provider string
}

type ModelList struct {
	Object string                    `json:"object"`
	Source string                    `json:"source"`
	Data   []catalog.ClassifiedModel `json:"data"`
}

func (s *service) catalogKey() string {
	return "catalog:" + s.provider.Name()
}

// ListModels returns the ranked catalog. The normalized upstream list is cached;
// ranking always runs with the current keyword settings. Upstream failures are
// never surfaced: the curated fallback list is ranked instead.
func (s *service) ListModels(ctx context.Context, filter ModelFilter) (*ModelList, error) {
	models, source := s.loadCatalog(ctx)

	opts := s.catalogOpts
	opts.Keywords = s.currentSettings(ctx).Keywords

	ranked := catalog.RankModels(models, opts)
	if filter.Tier != "" || filter.Provider != "" {
		ranked = catalog.Filter(ranked, filter.Tier, filter.Provider)
	}

	return &ModelList{
		Object: "list",
		Source: source,
		Data:   ranked,
	}, nil
}

var tracer = otel.Tracer("github.com/nulzo/atlas-api/internal/gateway")

func (s *service) loadCatalog(ctx context.Context) (models []catalog.Model, source string) {
	ctx, span := tracer.Start(ctx, "catalog.load")
	defer func() {
		span.SetAttributes(
			attribute.String("catalog.source", source),
			attribute.Int("catalog.models", len(models)),
		)
		span.End()
	}()

	key := s.catalogKey()

	var cached []catalog.Model
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, SourceCache
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	// concurrent misses share one upstream fetch, detached from any single
	// caller's cancellation
	v, _, shared := s.fetches.Do(key, func() (any, error) {
		return s.fetchCatalog(context.WithoutCancel(ctx), key), nil
	})
	span.SetAttributes(attribute.Bool("catalog.shared", shared))

	res := v.(fetchedCatalog)
	if res.err != nil {
		span.RecordError(res.err)
	}
	return res.models, res.source
}

type fetchedCatalog struct {
	models []catalog.Model
	source string
	err    error
}

func (s *service) fetchCatalog(ctx context.Context, key string) fetchedCatalog {
	raws, err := s.provider.Catalog(ctx)
	if err != nil {
		s.logger.Warn("upstream catalog unavailable, serving fallback",
			zap.String("provider", s.provider.Name()),
			zap.Error(err),
		)
		return fetchedCatalog{models: catalog.NormalizeAll(catalog.Fallback()), source: SourceFallback, err: err}
	}

	models := catalog.NormalizeAll(raws)
	if s.catalogTTL > 0 {
		if err := s.cache.Set(ctx, key, models, s.catalogTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return fetchedCatalog{models: models, source: SourceUpstream}
}
