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

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// openAIResponses is the subset of the Responses service the client uses.
type openAIResponses interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// OpenAIClient implements Client using the OpenAI Responses API.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	responses openAIResponses
	model     string
}

// NewOpenAIClient creates an OpenAIClient from a provider configuration.
//
// Inputs:
//   - cfg: Provider configuration. APIKey is required. BaseURL is optional
//     and supports OpenAI-compatible gateways.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if the API key is missing.
func NewOpenAIClient(cfg ProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	slog.Info("Initializing OpenAI client", slog.String("model", cfg.Model))
	return &OpenAIClient{responses: &client.Responses, model: cfg.Model}, nil
}

// Provider implements Client.
func (o *OpenAIClient) Provider() string { return ProviderOpenAI }

// Model implements Client.
func (o *OpenAIClient) Model() string { return o.model }

// Generate implements Client.Generate.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	model := o.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	req := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if params.MaxTokens != nil {
		req.MaxOutputTokens = openai.Int(int64(*params.MaxTokens))
	}
	if params.Temperature != nil {
		req.Temperature = openai.Float(float64(*params.Temperature))
	}

	resp, err := o.responses.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	text := resp.OutputText()
	if text == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	slog.Debug("Received OpenAI response",
		slog.String("model", model),
		slog.Int("response_len", len(text)),
	)
	return text, nil
}
