package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/httpclient"
	"github.com/nulzo/atlas-api/internal/llm"
	"github.com/nulzo/atlas-api/pkg/api"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

func init() {
	llm.Register(llm.OpenRouter, NewAdapter)
	// any OpenAI compatible endpoint speaks the same protocol
	llm.Register(llm.OpenAI, NewAdapter)
}

type Adapter struct {
	config config.LLMConfig
	client *http.Client
	stream *http.Client
}

func NewAdapter(cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Type == "" {
		cfg.Type = llm.OpenRouter
	}

	return &Adapter{
		config: cfg,
		client: httpclient.New(cfg.Timeout),
		// streams are bounded by the request context only
		stream: httpclient.New(0),
	}, nil
}

func (a *Adapter) Name() string {
	return a.config.Type
}

func (a *Adapter) Type() string {
	return a.config.Type
}

func (a *Adapter) headers() map[string]string {
	headers := make(map[string]string, len(a.config.Headers)+1)
	for k, v := range a.config.Headers {
		headers[k] = v
	}
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}
	return headers
}

// handleUpstreamError turns a non-2xx reply into a 502 problem that keeps the
// upstream status and code for the client.
func (a *Adapter) handleUpstreamError(err error) error {
	upstreamErr, ok := httpclient.AsUpstream(err)
	if !ok {
		return api.ProviderError("upstream provider unreachable", err)
	}

	detail := upstreamErr.Message()
	if detail == "" {
		detail = http.StatusText(upstreamErr.StatusCode)
	}

	return api.ProviderError(
		detail,
		err,
		api.WithExtension("upstream_status", upstreamErr.StatusCode),
		api.WithExtension("upstream_code", upstreamErr.Code()),
		api.WithExtension("provider", a.Name()),
	)
}

// Catalog returns the broker's raw model list. Callers decide what to do on failure.
func (a *Adapter) Catalog(ctx context.Context) ([]catalog.RawModel, error) {
	body, err := httpclient.Fetch(ctx, a.client, http.MethodGet, a.config.BaseURL+"/models", a.headers(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s catalog: %w", a.Name(), err)
	}

	raws, err := catalog.ParseCatalog(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s catalog: %w", a.Name(), err)
	}
	return raws, nil
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	var resp api.ChatResponse

	// ensure stream is false for this method
	upstream := *req
	upstream.Stream = false

	url := a.config.BaseURL + "/chat/completions"
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(), &upstream, &resp); err != nil {
		return nil, a.handleUpstreamError(err)
	}

	if resp.Error != nil {
		return nil, api.ProviderError(resp.Error.Message, resp.Error, api.WithExtension("upstream_code", resp.Error.Code))
	}

	return &resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	ch := make(chan api.StreamResult)

	upstream := *req
	upstream.Stream = true
	url := a.config.BaseURL + "/chat/completions"

	go func() {
		defer close(ch)

		send := func(r api.StreamResult) bool {
			select {
			case ch <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := httpclient.StreamRequest(ctx, a.stream, http.MethodPost, url, a.headers(), &upstream, func(line string) error {
			// SSE format: data: {...}
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				return nil
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return httpclient.ErrStreamDone
			}

			var chunk api.ChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// skip malformed chunks
				return nil
			}
			if chunk.Error != nil {
				return api.ProviderError(chunk.Error.Message, chunk.Error)
			}

			if !send(api.StreamResult{Response: &chunk}) {
				return ctx.Err()
			}
			return nil
		})

		if err != nil && ctx.Err() == nil {
			var problem *api.Problem
			if !errors.As(err, &problem) {
				err = a.handleUpstreamError(err)
			}
			send(api.StreamResult{Err: err})
		}
	}()

	return ch, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	_, err := httpclient.Fetch(ctx, a.client, http.MethodGet, a.config.BaseURL+"/models", a.headers(), nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
