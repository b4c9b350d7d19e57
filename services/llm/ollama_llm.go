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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient implements Client for a local Ollama server.
//
// Description:
//
//	Talks to Ollama through langchaingo so air-gapped deployments can
//	explain code without any hosted provider. No API key is needed.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	model llms.Model
	name  string
}

// NewOllamaClient creates an OllamaClient from a provider configuration.
func NewOllamaClient(cfg ProviderConfig) (*OllamaClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ResolveOllamaURL()
	}
	m, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}
	slog.Info("Initializing Ollama client",
		slog.String("model", cfg.Model),
		slog.String("base_url", baseURL),
	)
	return &OllamaClient{model: m, name: cfg.Model}, nil
}

// Provider implements Client.
func (o *OllamaClient) Provider() string { return ProviderOllama }

// Model implements Client.
func (o *OllamaClient) Model() string { return o.name }

// Generate implements Client.Generate.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.ModelOverride != "" {
		opts = append(opts, llms.WithModel(params.ModelOverride))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama: generation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return text, nil
}
