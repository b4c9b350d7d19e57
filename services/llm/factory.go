// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider constants for supported LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

const defaultRequestTimeout = 120 * time.Second

// ErrUnsupportedProvider is returned by NewClient for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrMissingAPIKey is returned by NewClient when a hosted provider has no
// API key.
var ErrMissingAPIKey = errors.New("api key not set")

// ProviderAuto selects the provider from the model name (see InferProvider).
const ProviderAuto = "auto"

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama}

// ProviderConfig holds the configuration for a single LLM provider instance.
//
// Description:
//
//	Specifies which provider to use, which model, and any provider-specific
//	settings. Used by NewClient to create the right client.
type ProviderConfig struct {
	// Provider is the backend to use: "gemini", "openai", "anthropic", "ollama".
	Provider string

	// Model is the provider-specific model identifier.
	// Examples: "gemini-2.5-flash" (Gemini), "llama3.1" (Ollama).
	Model string

	// BaseURL is an optional endpoint override.
	// For Ollama: defaults to OLLAMA_BASE_URL or http://localhost:11434.
	BaseURL string

	// APIKey is the authentication key for cloud providers.
	APIKey string

	// Timeout bounds a single provider request. Zero means 120s.
	Timeout time.Duration

	// RequestsPerMinute throttles outbound calls. Zero disables throttling.
	RequestsPerMinute int
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultRequestTimeout
	}
	return c.Timeout
}

// APIKeyEnvVar returns the environment variable that carries the API key
// for provider, or "" for providers that need none.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ResolveOllamaURL resolves the Ollama server URL from OLLAMA_BASE_URL,
// falling back to http://localhost:11434.
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:11434"
}

// InferProvider infers the provider from a model name prefix.
//
// Description:
//
//	Maps known model name prefixes to provider names:
//	  - "claude-*" -> "anthropic"
//	  - "gpt-*", "o1*", "o3*", "o4*" -> "openai"
//	  - "gemini-*" -> "gemini"
//	  - anything else -> "" (unknown)
func InferProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	default:
		return ""
	}
}

// ResolveProvider returns the concrete provider for a configured provider
// and model. An empty or "auto" provider is inferred from the model name.
//
// Outputs:
//   - string: One of ValidProviders.
//   - error: Wraps ErrUnsupportedProvider when the provider is unknown or
//     cannot be inferred.
func ResolveProvider(provider, model string) (string, error) {
	if provider == "" || provider == ProviderAuto {
		inferred := InferProvider(model)
		if inferred == "" {
			return "", fmt.Errorf("%w: cannot infer provider from model %q", ErrUnsupportedProvider, model)
		}
		return inferred, nil
	}
	if !IsValidProvider(provider) {
		return "", fmt.Errorf("%w: %q (valid: %v)", ErrUnsupportedProvider, provider, ValidProviders)
	}
	return provider, nil
}

// NewClient creates the Client for cfg.Provider.
//
// Description:
//
//	Builds the provider client, then wraps it with request throttling
//	(when RequestsPerMinute > 0) and with tracing and metrics. The
//	returned client performs a single attempt per Generate call.
//
// Inputs:
//   - cfg: Provider configuration specifying provider type and model.
//
// Outputs:
//   - Client: The instrumented client for the provider.
//   - error: Non-nil if the provider is unsupported or its key is missing.
//
// Example:
//
//	client, err := llm.NewClient(llm.ProviderConfig{
//	    Provider: "gemini",
//	    Model:    "gemini-2.5-flash",
//	    APIKey:   os.Getenv("GEMINI_API_KEY"),
//	})
func NewClient(cfg ProviderConfig) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for provider %q", cfg.Provider)
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY required for Gemini provider", ErrMissingAPIKey)
		}
		client, err = NewGeminiClient(cfg)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY required for OpenAI provider", ErrMissingAPIKey)
		}
		client, err = NewOpenAIClient(cfg)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY required for Anthropic provider", ErrMissingAPIKey)
		}
		client, err = NewAnthropicClient(cfg)
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = ResolveOllamaURL()
		}
		client, err = NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnsupportedProvider, cfg.Provider, ValidProviders)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	if cfg.RequestsPerMinute > 0 {
		client = NewRateLimitedClient(client, cfg.RequestsPerMinute)
	}
	return NewInstrumentedClient(client), nil
}
