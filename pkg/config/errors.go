package config

import "errors"

var (
	// ErrConfigNotFound indicates the config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML indicates the config file failed to parse.
	ErrInvalidYAML = errors.New("invalid YAML")

	// ErrProviderNotFound indicates an unknown LLM provider name.
	ErrProviderNotFound = errors.New("LLM provider not found")

	// ErrNoProviderConfigured indicates no LLM provider has an API key.
	ErrNoProviderConfigured = errors.New("no LLM provider configured")
)
