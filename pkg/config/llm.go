package config

import (
	"fmt"
	"sync"
)

// ProviderConfig defines one LLM provider entry from glean.yaml.
type ProviderConfig struct {
	// APIKey is resolved from the environment at load time via {{.VAR}}
	// expansion; an empty key means the provider is not configured.
	APIKey string `yaml:"api_key"`

	// Model name sent to the remote service.
	Model string `yaml:"model"`

	// URL overrides the provider's default endpoint. Required for eren
	// (an OpenAI-compatible service with no fixed host).
	URL string `yaml:"url,omitempty"`
}

// Configured reports whether the provider has enough material to be used.
func (p *ProviderConfig) Configured() bool {
	return p != nil && p.APIKey != "" && p.Model != ""
}

// ProviderRegistry stores provider configurations with thread-safe access.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*ProviderConfig
}

// NewProviderRegistry creates a registry over a defensive copy of providers.
func NewProviderRegistry(providers map[string]*ProviderConfig) *ProviderRegistry {
	copied := make(map[string]*ProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &ProviderRegistry{providers: copied}
}

// Get retrieves a provider configuration by name.
func (r *ProviderRegistry) Get(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Has checks whether a provider exists in the registry.
func (r *ProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// FirstConfigured returns the first configured provider in KnownProviders
// order, or "" when none is configured.
func (r *ProviderRegistry) FirstConfigured() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range KnownProviders {
		if r.providers[name].Configured() {
			return name
		}
	}
	return ""
}

// ConfiguredNames returns the names of all configured providers.
func (r *ProviderRegistry) ConfiguredNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for _, name := range KnownProviders {
		if r.providers[name].Configured() {
			names = append(names, name)
		}
	}
	return names
}
