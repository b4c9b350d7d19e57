// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explain asks the language model for a one-sentence summary of a
// single function.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

const promptTemplate = "Explain this %s function in one specific sentence:\n\n%s"

// Explainer produces one-sentence explanations of function source text.
//
// Thread Safety: Safe for concurrent use if the client is.
type Explainer struct {
	client llm.Client
	logger *slog.Logger
	params llm.GenerationParams
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithParams sets the generation parameters sent with every request.
func WithParams(params llm.GenerationParams) Option {
	return func(e *Explainer) {
		e.params = params
	}
}

// NewExplainer creates an Explainer backed by client.
func NewExplainer(client llm.Client, logger *slog.Logger, opts ...Option) *Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Explainer{client: client, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prompt renders the explanation prompt for code written in language.
func Prompt(language, code string) string {
	if language == "" {
		language = "Python"
	}
	return fmt.Sprintf(promptTemplate, language, code)
}

// Explain asks the model to explain code in one sentence.
//
// Description:
//
//	Sends a single request with no retry. Any failure (transport, quota,
//	empty answer) is returned in Result.Err; the caller decides what to
//	store instead.
//
// Inputs:
//   - ctx: Context for the model call.
//   - code: The function source text.
//   - language: Display name used in the prompt (e.g., "Python").
//
// Outputs:
//   - llm.Result: The trimmed explanation, or the failure reason.
func (e *Explainer) Explain(ctx context.Context, code, language string) llm.Result {
	text, err := e.client.Generate(ctx, Prompt(language, code), e.params)
	if err != nil {
		e.logger.Warn("explanation failed",
			slog.String("provider", e.client.Provider()),
			slog.String("error", llm.SafeLogString(err.Error())))
		return llm.Result{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return llm.Result{Err: llm.ErrEmptyResponse}
	}
	return llm.Result{Text: text}
}
