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
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type fakeAnthropicMessages struct {
	response *anthropic.Message
	err      error
	calls    []anthropic.MessageNewParams
}

func (f *fakeAnthropicMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls = append(f.calls, body)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestNewAnthropicClient_MissingAPIKey(t *testing.T) {
	if _, err := NewAnthropicClient(ProviderConfig{Model: "claude-haiku-4-5"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestAnthropicClient_Generate_JoinsTextBlocks(t *testing.T) {
	fake := &fakeAnthropicMessages{response: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Parses "},
			{Type: "thinking"},
			{Type: "text", Text: "a config file."},
		},
	}}
	client := &AnthropicClient{messages: fake, model: "claude-haiku-4-5"}

	text, err := client.Generate(context.Background(), "explain", GenerationParams{Temperature: Float32(0.1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Parses a config file." {
		t.Errorf("text = %q", text)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fake.calls))
	}
	if fake.calls[0].MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("MaxTokens = %d", fake.calls[0].MaxTokens)
	}
	if string(fake.calls[0].Model) != "claude-haiku-4-5" {
		t.Errorf("Model = %q", fake.calls[0].Model)
	}
}

func TestAnthropicClient_Generate_ModelOverride(t *testing.T) {
	fake := &fakeAnthropicMessages{response: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "ok"}},
	}}
	client := &AnthropicClient{messages: fake, model: "claude-haiku-4-5"}

	if _, err := client.Generate(context.Background(), "x", GenerationParams{ModelOverride: "claude-sonnet-4-5", MaxTokens: Int(10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(fake.calls[0].Model) != "claude-sonnet-4-5" || fake.calls[0].MaxTokens != 10 {
		t.Errorf("params = %+v", fake.calls[0])
	}
}

func TestAnthropicClient_Generate_Errors(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		client := &AnthropicClient{messages: &fakeAnthropicMessages{err: errors.New("dial tcp: refused")}, model: "m"}
		if _, err := client.Generate(context.Background(), "x", GenerationParams{}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no text blocks", func(t *testing.T) {
		client := &AnthropicClient{messages: &fakeAnthropicMessages{response: &anthropic.Message{}}, model: "m"}
		_, err := client.Generate(context.Background(), "x", GenerationParams{})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("err = %v, want ErrEmptyResponse", err)
		}
	})
}
