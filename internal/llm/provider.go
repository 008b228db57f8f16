package llm

import (
	"context"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/pkg/api"
)

const (
	OpenRouter = "openrouter"
	OpenAI     = "openai"
	Ollama     = "ollama"
)

// Provider is an upstream model broker. It lists the models it can serve and
// proxies chat completions to them.
type Provider interface {
	Name() string
	Type() string
	Catalog(ctx context.Context) ([]catalog.RawModel, error)
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)
	Health(ctx context.Context) error
}
