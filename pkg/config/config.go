// Package config loads and validates glean.yaml: server settings, the
// repository database, and the LLM provider registry.
package config

import (
	"time"
)

// KnownProviders is the provider name set the engine recognises, in default
// selection order: the first configured one becomes the default when
// default_provider is unset.
var KnownProviders = []string{"gemini", "claude", "openai", "eren"}

// Config is the fully resolved runtime configuration.
type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Providers       *ProviderRegistry
	DefaultProvider string

	// ConversationTTL is the idle time after which in-memory conversation
	// state is evicted.
	ConversationTTL time.Duration

	// CleanupInterval is the period of the conversation eviction sweep.
	CleanupInterval time.Duration
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// DatabaseConfig holds the repository database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DefaultConfig returns the built-in defaults user YAML is merged over.
func DefaultConfig() *Config {
	return &Config{
		Server:          ServerConfig{Addr: ":8080"},
		ConversationTTL: time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}
