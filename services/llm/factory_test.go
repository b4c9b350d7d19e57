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
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient is a Client with scripted answers.
type stubClient struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubClient) Generate(ctx context.Context, _ string, _ GenerationParams) (string, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.text, s.err
}

func (s *stubClient) Provider() string { return "stub" }
func (s *stubClient) Model() string    { return "stub-model" }

func TestNewClient_Providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr string
	}{
		{name: "gemini", cfg: ProviderConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash", APIKey: "k"}},
		{name: "openai", cfg: ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"}},
		{name: "anthropic", cfg: ProviderConfig{Provider: ProviderAnthropic, Model: "claude-haiku-4-5", APIKey: "k"}},
		{name: "ollama", cfg: ProviderConfig{Provider: ProviderOllama, Model: "llama3.1"}},
		{name: "rate limited", cfg: ProviderConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash", APIKey: "k", RequestsPerMinute: 30}},
		{name: "gemini missing key", cfg: ProviderConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash"}, wantErr: "GEMINI_API_KEY"},
		{name: "openai missing key", cfg: ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}, wantErr: "OPENAI_API_KEY"},
		{name: "anthropic missing key", cfg: ProviderConfig{Provider: ProviderAnthropic, Model: "claude-haiku-4-5"}, wantErr: "ANTHROPIC_API_KEY"},
		{name: "missing model", cfg: ProviderConfig{Provider: ProviderGemini, APIKey: "k"}, wantErr: "model is required"},
		{name: "unknown provider", cfg: ProviderConfig{Provider: "bard", Model: "x"}, wantErr: "unsupported provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Provider, client.Provider())
			assert.Equal(t, tt.cfg.Model, client.Model())
		})
	}
}

func TestInferProvider(t *testing.T) {
	assert.Equal(t, ProviderAnthropic, InferProvider("claude-sonnet-4-5"))
	assert.Equal(t, ProviderOpenAI, InferProvider("gpt-4o"))
	assert.Equal(t, ProviderOpenAI, InferProvider("o3-mini"))
	assert.Equal(t, ProviderGemini, InferProvider("gemini-2.5-flash"))
	assert.Equal(t, "", InferProvider("llama3.1"))
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		provider, model, want string
		wantErr               bool
	}{
		{provider: "gemini", model: "anything", want: ProviderGemini},
		{provider: "ollama", model: "llama3.1", want: ProviderOllama},
		{provider: "auto", model: "claude-haiku-4-5", want: ProviderAnthropic},
		{provider: "", model: "gpt-4o-mini", want: ProviderOpenAI},
		{provider: "auto", model: "gemini-2.5-flash", want: ProviderGemini},
		{provider: "auto", model: "llama3.1", wantErr: true},
		{provider: "bard", model: "gemini-2.5-flash", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			got, err := ResolveProvider(tt.provider, tt.model)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsValidProvider(got))
		})
	}
	assert.False(t, IsValidProvider(ProviderAuto))
}

func TestNewClient_UnsupportedProviderSentinel(t *testing.T) {
	_, err := NewClient(ProviderConfig{Provider: "bard", Model: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestAPIKeyEnvVar(t *testing.T) {
	assert.Equal(t, "GEMINI_API_KEY", APIKeyEnvVar(ProviderGemini))
	assert.Equal(t, "OPENAI_API_KEY", APIKeyEnvVar(ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", APIKeyEnvVar(ProviderAnthropic))
	assert.Equal(t, "", APIKeyEnvVar(ProviderOllama))
}

func TestResolveOllamaURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	assert.Equal(t, "http://localhost:11434", ResolveOllamaURL())
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	assert.Equal(t, "http://gpu-box:11434", ResolveOllamaURL())
}

func TestInstrumentedClient_PassesThrough(t *testing.T) {
	stub := &stubClient{text: "hello"}
	client := NewInstrumentedClient(stub)

	text, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	stub.err = errors.New("gemini: API returned status 429: slow down")
	stub.text = ""
	_, err = client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestClassifyError(t *testing.T) {
	tests := map[string]error{
		"":           nil,
		"timeout":    context.DeadlineExceeded,
		"empty":      ErrEmptyResponse,
		"auth":       errors.New("gemini: API returned status 401: bad key"),
		"rate_limit": errors.New("gemini: API returned status 429: quota"),
		"server":     errors.New("gemini: API returned status 503: overloaded"),
		"unknown":    errors.New("something odd"),
	}
	for want, err := range tests {
		assert.Equal(t, want, classifyError(err), "error %v", err)
	}
}

func TestRateLimitedClient_SpacesCalls(t *testing.T) {
	stub := &stubClient{text: "ok"}
	// 600/min is one token every 100ms with a burst of one.
	client := NewRateLimitedClient(stub, 600)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Generate(context.Background(), "p", GenerationParams{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestRateLimitedClient_ContextCancelled(t *testing.T) {
	stub := &stubClient{text: "ok"}
	client := NewRateLimitedClient(stub, 1)

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, "p", GenerationParams{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limit wait"))
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestResult_Or(t *testing.T) {
	assert.Equal(t, "text", Result{Text: "text"}.Or("fallback"))
	assert.Equal(t, "fallback", Result{Text: "partial", Err: errors.New("x")}.Or("fallback"))
	assert.True(t, Result{Text: "t"}.OK())
	assert.False(t, Result{Err: errors.New("x")}.OK())
}

func TestNewClient_MissingKeySentinel(t *testing.T) {
	_, err := NewClient(ProviderConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestUnavailableClient(t *testing.T) {
	client := NewUnavailableClient(ProviderGemini, "gemini-2.5-flash", ErrMissingAPIKey)
	assert.Equal(t, ProviderGemini, client.Provider())
	assert.Equal(t, "gemini-2.5-flash", client.Model())

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Generate(ctx, "p", GenerationParams{})
	assert.ErrorIs(t, err, context.Canceled)
}
