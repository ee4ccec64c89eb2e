package llm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/insightloop/glean/pkg/config"
)

// ErrProviderNotConfigured indicates the named provider lacks an API key or
// model in configuration.
var ErrProviderNotConfigured = errors.New("provider not configured")

// Factory builds and caches one Provider instance per configured name.
type Factory struct {
	registry *config.ProviderRegistry

	mu    sync.Mutex
	cache map[string]Provider
}

// NewFactory creates a Factory over the provider registry.
func NewFactory(registry *config.ProviderRegistry) *Factory {
	return &Factory{
		registry: registry,
		cache:    make(map[string]Provider),
	}
}

// Get returns the provider for a name, constructing it on first use.
func (f *Factory) Get(name string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[name]; ok {
		return p, nil
	}

	cfg, err := f.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}

	var p Provider
	switch name {
	case "claude":
		p = NewAnthropicProvider(*cfg)
	case "openai":
		p = NewOpenAIProvider(*cfg)
	case "eren":
		p = NewErenProvider(*cfg)
	case "gemini":
		p = NewGeminiProvider(*cfg)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrProviderNotFound, name)
	}

	f.cache[name] = p
	return p, nil
}
