package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/httpclient"
	"github.com/nulzo/atlas-api/internal/llm"
	"github.com/nulzo/atlas-api/internal/llm/openrouter"
	"github.com/nulzo/atlas-api/internal/llm/reasoning"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/tidwall/gjson"
)

func init() {
	llm.Register(llm.Ollama, NewAdapter)
}

// Adapter serves local models. Chat goes through the OpenAI compatible
// endpoint; the catalog comes from the native tags API and is always free.
type Adapter struct {
	llm.Provider
	rootURL string
	client  *http.Client
}

func NewAdapter(cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	root := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")
	cfg.BaseURL = root + "/v1"
	cfg.Type = llm.Ollama

	compat, err := openrouter.NewAdapter(cfg)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		Provider: compat,
		rootURL:  root,
		client:   httpclient.New(10 * time.Second),
	}, nil
}

func (a *Adapter) Type() string {
	return llm.Ollama
}

func (a *Adapter) Catalog(ctx context.Context) ([]catalog.RawModel, error) {
	body, err := httpclient.Fetch(ctx, a.client, http.MethodGet, a.rootURL+"/api/tags", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags error: %w", err)
	}

	tags := gjson.GetBytes(body, "models")
	if !tags.IsArray() {
		return nil, catalog.ErrUnparseableCatalog
	}

	free := gjson.Parse(`"0"`)
	var raws []catalog.RawModel
	for _, m := range tags.Array() {
		name := m.Get("name").String()
		if name == "" {
			continue
		}
		raws = append(raws, catalog.RawModel{
			ID:            llm.Ollama + "/" + name,
			Name:          name,
			Description:   fmt.Sprintf("Local %s model (%s)", m.Get("details.family").String(), m.Get("details.parameter_size").String()),
			Pricing:       catalog.RawPricing{Prompt: free, Completion: free},
			ContextLength: a.contextLength(ctx, name),
		})
	}
	return raws, nil
}

// contextLength asks /api/show for the model's window. Failures leave it unknown.
func (a *Adapter) contextLength(ctx context.Context, name string) gjson.Result {
	body, err := httpclient.Fetch(ctx, a.client, http.MethodPost, a.rootURL+"/api/show", nil, map[string]string{"name": name})
	if err != nil {
		return gjson.Result{}
	}

	var window gjson.Result
	gjson.GetBytes(body, "model_info").ForEach(func(key, value gjson.Result) bool {
		// keys look like "llama.context_length"
		if strings.HasSuffix(key.String(), "context_length") && value.Type == gjson.Number {
			window = value
			return false
		}
		return true
	})
	return window
}

// Chat moves inline <think> blocks of local reasoning models into the
// message's reasoning field.
func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	resp, err := a.Provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, choice := range resp.Choices {
		if m := choice.Message; m != nil {
			content, thought := reasoning.Split(m.Content.Text)
			m.Content.Text = content
			m.Reasoning += thought
		}
	}
	return resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	upstream, err := a.Provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan api.StreamResult)
	go func() {
		defer close(out)
		splitters := map[int]*reasoning.Splitter{}

		for res := range upstream {
			if res.Response != nil {
				splitDeltas(res.Response, splitters)
			}
			select {
			case out <- res:
			case <-ctx.Done():
				for range upstream {
				}
				return
			}
		}
	}()
	return out, nil
}

func splitDeltas(resp *api.ChatResponse, splitters map[int]*reasoning.Splitter) {
	for _, choice := range resp.Choices {
		d := choice.Delta
		if d == nil {
			continue
		}
		s, ok := splitters[choice.Index]
		if !ok {
			s = &reasoning.Splitter{}
			splitters[choice.Index] = s
		}

		content, thought := s.Feed(d.Content.Text)
		if choice.FinishReason != "" {
			c, r := s.Flush()
			content, thought = content+c, thought+r
		}
		d.Content.Text = content
		d.Reasoning += thought
	}
}

func (a *Adapter) Health(ctx context.Context) error {
	if _, err := httpclient.Fetch(ctx, a.client, http.MethodGet, a.rootURL+"/api/version", nil, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
