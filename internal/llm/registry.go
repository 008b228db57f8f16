package llm

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/nulzo/atlas-api/internal/config"
)

// Factory builds a provider from its configuration block.
type Factory func(cfg config.LLMConfig) (Provider, error)

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes a provider type available to New. Adapters call it from
// init, so a duplicate type panics.
func Register(providerType string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.factories[providerType]; dup {
		panic(fmt.Sprintf("llm: provider type %q registered twice", providerType))
	}
	registry.factories[providerType] = f
}

// New builds the provider named by cfg.Type and wraps it with tracing.
func New(cfg config.LLMConfig) (Provider, error) {
	registry.RLock()
	f, ok := registry.factories[cfg.Type]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider type %q (registered: %s)", cfg.Type, strings.Join(Types(), ", "))
	}

	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: build %s provider: %w", cfg.Type, err)
	}
	return Traced(p), nil
}

// Types lists the registered provider types in order.
func Types() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.factories))
}
