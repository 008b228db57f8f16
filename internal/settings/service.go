package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/nulzo/atlas-api/internal/server/validator"
	"github.com/nulzo/atlas-api/pkg/api"
)

const (
	KeyDefaultModel = "default_model"
	KeyKeywords     = "keywords"
	KeySystemPrompt = "system_prompt"
)

// Settings are the administrator-tunable values. Unset keys fall back to the
// configured defaults.
type Settings struct {
	DefaultModel string   `json:"default_model" binding:"required,model_id"`
	Keywords     []string `json:"keywords" binding:"max=32,dive,min=1,max=32"`
	SystemPrompt string   `json:"system_prompt" binding:"max=8000"`
}

type Service struct {
	store    Store
	defaults Settings
}

func NewService(store Store, defaults Settings) *Service {
	return &Service{store: store, defaults: defaults}
}

func (s *Service) Defaults() Settings {
	d := s.defaults
	d.Keywords = slices.Clone(d.Keywords)
	return d
}

// Get merges stored values over the defaults.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	values, err := s.store.All(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	out := s.Defaults()
	if v, ok := values[KeyDefaultModel]; ok && v != "" {
		out.DefaultModel = v
	}
	if v, ok := values[KeySystemPrompt]; ok {
		out.SystemPrompt = v
	}
	if v, ok := values[KeyKeywords]; ok {
		var kw []string
		if err := json.Unmarshal([]byte(v), &kw); err != nil {
			return Settings{}, fmt.Errorf("decode stored keywords: %w", err)
		}
		out.Keywords = kw
	}
	return out, nil
}

// Update applies a partial change. The merged result is validated before
// anything is written.
func (s *Service) Update(ctx context.Context, req api.SettingsRequest) (Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}

	next := current
	if req.DefaultModel != nil {
		next.DefaultModel = *req.DefaultModel
	}
	if req.SystemPrompt != nil {
		next.SystemPrompt = *req.SystemPrompt
	}
	if req.Keywords != nil {
		next.Keywords = req.Keywords
	}

	if err := validator.Struct(&next); err != nil {
		return Settings{}, api.ValidationError(validator.ParseValidationError(err))
	}

	if req.DefaultModel != nil {
		if err := s.store.Set(ctx, KeyDefaultModel, next.DefaultModel); err != nil {
			return Settings{}, fmt.Errorf("save %s: %w", KeyDefaultModel, err)
		}
	}
	if req.SystemPrompt != nil {
		if err := s.store.Set(ctx, KeySystemPrompt, next.SystemPrompt); err != nil {
			return Settings{}, fmt.Errorf("save %s: %w", KeySystemPrompt, err)
		}
	}
	if req.Keywords != nil {
		encoded, err := json.Marshal(next.Keywords)
		if err != nil {
			return Settings{}, err
		}
		if err := s.store.Set(ctx, KeyKeywords, string(encoded)); err != nil {
			return Settings{}, fmt.Errorf("save %s: %w", KeyKeywords, err)
		}
	}

	return next, nil
}

// Reset drops every stored override.
func (s *Service) Reset(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyDefaultModel, KeyKeywords, KeySystemPrompt} {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
