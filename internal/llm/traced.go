package llm

import (
	"context"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/nulzo/atlas-api/internal/llm"

type traced struct {
	Provider
}

// Traced records a span around every upstream call of p. Stream spans end
// when the stream is opened, not when it drains.
func Traced(p Provider) Provider {
	if _, ok := p.(traced); ok {
		return p
	}
	return traced{Provider: p}
}

func (t traced) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("llm.provider", t.Name()),
		attribute.String("llm.type", t.Type()),
	)
	return otel.Tracer(instrumentation).Start(ctx, "llm."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t traced) Catalog(ctx context.Context) (raws []catalog.RawModel, err error) {
	ctx, span := t.start(ctx, "catalog")
	defer func() {
		span.SetAttributes(attribute.Int("llm.models", len(raws)))
		finish(span, err)
	}()
	return t.Provider.Catalog(ctx)
}

func (t traced) Chat(ctx context.Context, req *api.ChatRequest) (resp *api.ChatResponse, err error) {
	ctx, span := t.start(ctx, "chat", attribute.String("llm.model", req.Model))
	defer func() {
		if resp != nil && resp.Usage != nil {
			span.SetAttributes(
				attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
				attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
			)
		}
		finish(span, err)
	}()
	return t.Provider.Chat(ctx, req)
}

func (t traced) Stream(ctx context.Context, req *api.ChatRequest) (_ <-chan api.StreamResult, err error) {
	ctx, span := t.start(ctx, "stream", attribute.String("llm.model", req.Model))
	defer func() { finish(span, err) }()
	return t.Provider.Stream(ctx, req)
}

func (t traced) Health(ctx context.Context) (err error) {
	ctx, span := t.start(ctx, "health")
	defer func() { finish(span, err) }()
	return t.Provider.Health(ctx)
}
