package ollama_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/llm"
	_ "github.com/nulzo/atlas-api/internal/llm/ollama"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOllamaCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": [
				{"name": "llama3.2:3b", "details": {"family": "llama", "parameter_size": "3.2B"}},
				{"name": "phi3:mini", "details": {"family": "phi3", "parameter_size": "3.8B"}}
			]}`))
		case "/api/show":
			body, _ := io.ReadAll(r.Body)
			if gjson.GetBytes(body, "name").String() == "llama3.2:3b" {
				_, _ = w.Write([]byte(`{"model_info": {"general.architecture": "llama", "llama.context_length": 131072}}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider, err := llm.New(config.LLMConfig{Type: llm.Ollama, BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, llm.Ollama, provider.Type())

	raws, err := provider.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)

	models := catalog.Pipeline(raws, catalog.DefaultOptions())
	require.Len(t, models, 2, "local models are free so always relevant")

	llama := models[0]
	assert.Equal(t, "ollama/llama3.2:3b", llama.ID)
	assert.Equal(t, "Ollama", llama.Provider)
	assert.Equal(t, catalog.TierFree, llama.Tier)
	assert.Equal(t, catalog.KnownContext(131072), llama.ContextLength)
	assert.Equal(t, "Local llama model (3.2B)", llama.Description)

	assert.False(t, models[1].ContextLength.Known)
}

func TestOllamaHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		_, _ = w.Write([]byte(`{"version": "0.5.1"}`))
	}))
	defer server.Close()

	provider, err := llm.New(config.LLMConfig{Type: llm.Ollama, BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, provider.Health(context.Background()))
}

func TestOllamaChat_SplitsReasoning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "c1", "model": "deepseek-r1", "choices": [
			{"index": 0, "message": {"role": "assistant", "content": "<think>two days is tight</think>Start at the Colosseum."}, "finish_reason": "stop"}
		]}`))
	}))
	defer server.Close()

	provider, err := llm.New(config.LLMConfig{Type: llm.Ollama, BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.Chat(context.Background(), &api.ChatRequest{
		Model:    "deepseek-r1",
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "Rome in 2 days"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	msg := resp.Choices[0].Message
	assert.Equal(t, "Start at the Colosseum.", msg.Content.Text)
	assert.Equal(t, "two days is tight", msg.Reasoning)
}

func TestOllamaStream_SplitsReasoningAcrossChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"<thi", "nk>hmm</think>", "Go to Ostia"} {
			_, _ = w.Write([]byte(`data: {"id": "s1", "choices": [{"index": 0, "delta": {"content": "` + delta + `"}}]}` + "\n\n"))
		}
		_, _ = w.Write([]byte(`data: {"id": "s1", "choices": [{"index": 0, "delta": {"content": ""}, "finish_reason": "stop"}]}` + "\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	provider, err := llm.New(config.LLMConfig{Type: llm.Ollama, BaseURL: server.URL})
	require.NoError(t, err)

	ch, err := provider.Stream(context.Background(), &api.ChatRequest{
		Model:    "deepseek-r1",
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "day trip"}}},
	})
	require.NoError(t, err)

	var content, thought string
	for res := range ch {
		require.NoError(t, res.Err)
		for _, c := range res.Response.Choices {
			content += c.Delta.Content.Text
			thought += c.Delta.Reasoning
		}
	}

	assert.Equal(t, "Go to Ostia", content)
	assert.Equal(t, "hmm", thought)
}
