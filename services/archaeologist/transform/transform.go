// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transform rewrites code and generates unit tests through the
// language model.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// Kind identifies a transformation.
type Kind string

const (
	KindRefactor Kind = "refactor"
	KindTests    Kind = "tests"
)

const refactorPrompt = `
You are a Senior Python Architect.
Refactor the following legacy function into production-grade Python 3.12.

Requirements:
1. Add Type Hints (e.g. def func(x: int) -> int).
2. Add a Google-style Docstring.
3. Rename variables if they are unclear (e.g. change 'x' to 'price').
4. Return ONLY the raw code. Do not wrap it in markdown ticks (` + "```" + `).

Legacy Code:
%s
`

const testsPrompt = `
You are a QA Automation Engineer.
Write a Python 'unittest' class to test the following function.

Requirements:
1. Include at least 3 test cases: a standard case, an edge case, and a failure case.
2. Use 'unittest.TestCase'.
3. Return ONLY the raw python code. No markdown.

Function to test:
%s
`

// fencePattern matches a fence marker. An info string running to the end
// of its line (```json, ```pycon) is consumed with the marker and its line
// break. A marker followed directly by code loses only the backticks.
var fencePattern = regexp.MustCompile("```[A-Za-z0-9_+.#-]*[ \t]*(?:\r?\n|$)|```")

// StripCodeFences removes every markdown code-fence marker from s and
// trims surrounding whitespace.
func StripCodeFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

// Fallback renders the comment returned to clients when a transformation
// fails.
func Fallback(kind Kind, err error) string {
	msg := ""
	if err != nil {
		msg = llm.SafeLogString(err.Error())
	}
	switch kind {
	case KindTests:
		return "# Error generating tests: " + msg
	default:
		return "# Error refactoring code: " + msg
	}
}

// Service sends code to the model with a fixed prompt per Kind.
//
// Thread Safety: Safe for concurrent use if the client is. Stateless
// apart from its collaborators.
type Service struct {
	client llm.Client
	logger *slog.Logger
	params llm.GenerationParams
}

// Option configures a Service.
type Option func(*Service)

// WithParams sets the generation parameters sent with every request,
// including an optional model override.
func WithParams(params llm.GenerationParams) Option {
	return func(s *Service) {
		s.params = params
	}
}

// NewService creates a Service backed by client.
func NewService(client llm.Client, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{client: client, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refactor asks the model for a modernized version of code.
func (s *Service) Refactor(ctx context.Context, code string) llm.Result {
	return s.run(ctx, KindRefactor, code)
}

// GenerateTests asks the model for a unit-test suite covering code.
func (s *Service) GenerateTests(ctx context.Context, code string) llm.Result {
	return s.run(ctx, KindTests, code)
}

func (s *Service) run(ctx context.Context, kind Kind, code string) llm.Result {
	template := refactorPrompt
	if kind == KindTests {
		template = testsPrompt
	}

	text, err := s.client.Generate(ctx, fmt.Sprintf(template, code), s.params)
	if err != nil {
		s.logger.Warn("transformation failed",
			slog.String("kind", string(kind)),
			slog.String("error", llm.SafeLogString(err.Error())))
		return llm.Result{Err: err}
	}
	return llm.Result{Text: StripCodeFences(text)}
}
