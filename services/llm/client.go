// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides text-generation clients for the hosted and local
// model providers the archaeologist can talk to.
package llm

import (
	"context"
	"errors"
)

// Client generates a single text completion for a prompt.
//
// Description:
//
//	Every provider client in this package implements Client. Callers hand
//	in a fully rendered prompt and receive the model's raw text. Clients
//	perform exactly one provider request per call and never retry.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	// Generate sends prompt to the model and returns the generated text.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Provider returns the provider identifier (e.g., "gemini").
	Provider() string

	// Model returns the configured model name.
	Model() string
}

// GenerationParams tunes a single generation request.
//
// Nil pointer fields mean "use the provider default".
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	ModelOverride string
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: provider returned empty text")

// Result is the outcome of a generation that callers degrade on failure.
//
// Description:
//
//	Result carries either the generated text or the error that prevented
//	it. Callers choose their own fallback text through Or, so the policy
//	for a failed generation lives next to the feature that needs it.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the generation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Or returns the generated text, or fallback if the generation failed.
func (r Result) Or(fallback string) string {
	if r.Err != nil {
		return fallback
	}
	return r.Text
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
