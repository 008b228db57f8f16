package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubProvider struct {
	chatErr error
}

func (stubProvider) Name() string { return "stub" }
func (stubProvider) Type() string { return "stub" }

func (stubProvider) Catalog(context.Context) ([]catalog.RawModel, error) {
	return []catalog.RawModel{{ID: "a/b"}, {ID: "c/d"}}, nil
}

func (s stubProvider) Chat(context.Context, *api.ChatRequest) (*api.ChatResponse, error) {
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &api.ChatResponse{Usage: &api.ResponseUsage{PromptTokens: 7, CompletionTokens: 3}}, nil
}

func (stubProvider) Stream(context.Context, *api.ChatRequest) (<-chan api.StreamResult, error) {
	ch := make(chan api.StreamResult)
	close(ch)
	return ch, nil
}

func (stubProvider) Health(context.Context) error { return nil }

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTraced_RecordsCalls(t *testing.T) {
	rec := recordSpans(t)
	ctx := context.Background()
	p := Traced(stubProvider{})

	_, err := p.Catalog(ctx)
	require.NoError(t, err)
	_, err = p.Chat(ctx, &api.ChatRequest{Model: "a/b"})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "llm.catalog", spans[0].Name())
	assert.Equal(t, int64(2), attrs(spans[0])["llm.models"].AsInt64())

	chat := attrs(spans[1])
	assert.Equal(t, "llm.chat", spans[1].Name())
	assert.Equal(t, "a/b", chat["llm.model"].AsString())
	assert.Equal(t, "stub", chat["llm.provider"].AsString())
	assert.Equal(t, int64(7), chat["llm.usage.prompt_tokens"].AsInt64())
}

func TestTraced_MarksErrors(t *testing.T) {
	rec := recordSpans(t)

	_, err := Traced(stubProvider{chatErr: errors.New("upstream 503")}).Chat(context.Background(), &api.ChatRequest{})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "upstream 503", spans[0].Status().Description)
}

func TestTraced_WrapsOnce(t *testing.T) {
	p := Traced(stubProvider{})
	assert.Equal(t, p, Traced(p))
}

func TestNew_UnknownTypeListsRegistered(t *testing.T) {
	Register("stub-test", func(config.LLMConfig) (Provider, error) { return stubProvider{}, nil })

	_, err := New(config.LLMConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub-test")

	p, err := New(config.LLMConfig{Type: "stub-test"})
	require.NoError(t, err)
	assert.IsType(t, traced{}, p)

	assert.Panics(t, func() {
		Register("stub-test", func(config.LLMConfig) (Provider, error) { return nil, nil })
	})
}
