package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the glean.yaml file structure.
type yamlConfig struct {
	Server          ServerConfig               `yaml:"server"`
	Database        DatabaseConfig             `yaml:"database"`
	AI              map[string]*ProviderConfig `yaml:"ai"`
	DefaultProvider string                     `yaml:"default_provider"`
	ConversationTTL string                     `yaml:"conversation_ttl"`
	CleanupInterval string                     `yaml:"cleanup_interval"`
}

// Initialize loads, merges, and validates configuration from path.
// Environment variables referenced as {{.VAR}} are expanded before parsing.
func Initialize(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	cfg := DefaultConfig()
	if err := mergo.Merge(&cfg.Server, raw.Server, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge server config: %w", err)
	}
	cfg.Database = raw.Database

	if raw.ConversationTTL != "" {
		if d, err := time.ParseDuration(raw.ConversationTTL); err == nil {
			cfg.ConversationTTL = d
		} else {
			slog.Warn("Invalid conversation_ttl, using default",
				"value", raw.ConversationTTL, "default", cfg.ConversationTTL)
		}
	}
	if raw.CleanupInterval != "" {
		if d, err := time.ParseDuration(raw.CleanupInterval); err == nil {
			cfg.CleanupInterval = d
		}
	}

	// Normalize the provider map: every known provider has an entry so the
	// registry can answer Configured() without nil checks at call sites.
	providers := make(map[string]*ProviderConfig, len(KnownProviders))
	for _, name := range KnownProviders {
		if p, ok := raw.AI[name]; ok && p != nil {
			providers[name] = p
		} else {
			providers[name] = &ProviderConfig{}
		}
	}
	for name := range raw.AI {
		if _, ok := providers[name]; !ok {
			slog.Warn("Ignoring unknown AI provider in config", "provider", name)
		}
	}
	cfg.Providers = NewProviderRegistry(providers)

	cfg.DefaultProvider = raw.DefaultProvider
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = cfg.Providers.FirstConfigured()
	}
	if cfg.DefaultProvider == "" {
		return nil, ErrNoProviderConfigured
	}
	if !cfg.Providers.Has(cfg.DefaultProvider) {
		return nil, fmt.Errorf("%w: default provider %q", ErrProviderNotFound, cfg.DefaultProvider)
	}

	slog.Info("Configuration initialized",
		"addr", cfg.Server.Addr,
		"default_provider", cfg.DefaultProvider,
		"configured_providers", cfg.Providers.ConfiguredNames())

	return cfg, nil
}
