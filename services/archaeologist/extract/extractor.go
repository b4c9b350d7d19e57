// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract finds the top-level functions in a source file using
// tree-sitter.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "archaeologist.extract"

// DefaultMaxFileSize is the largest source file Extract accepts.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var (
	// ErrFileTooLarge is returned when content exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Function is one top-level function found in a source file.
type Function struct {
	// Name is the function identifier.
	Name string

	// Code is the exact source text of the definition.
	Code string

	// StartLine is the zero-based line of the first character.
	StartLine int

	// EndLine is the zero-based line of the last character.
	EndLine int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize sets the maximum content size in bytes. Non-positive
// values are ignored.
func WithMaxFileSize(bytes int64) Option {
	return func(e *Extractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor pulls top-level function definitions out of source text.
//
// Description:
//
//	Extractor parses with tree-sitter and walks only the direct children
//	of the root node, so nested functions and methods are never returned.
//	The grammar is chosen from the filename extension (see LanguageFor).
//	Unparseable input is not an error: tree-sitter produces a best-effort
//	tree and whatever function nodes it contains are returned.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Extract call creates its own
//	tree-sitter parser.
type Extractor struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the top-level functions of content in source order.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - filename: Used only to choose the grammar.
//   - content: Raw source bytes. Must be valid UTF-8.
//
// Outputs:
//   - []Function: One entry per top-level definition, ordered by start
//     line. Empty (never nil) when there are none.
//   - error: Non-nil on cancellation, oversize or non-UTF-8 content, or
//     a tree-sitter failure.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) ([]Function, error) {
	lang := LanguageFor(filename)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "extract.Extract",
		trace.WithAttributes(
			attribute.String("file", filename),
			attribute.String("language", lang.Name),
			attribute.Int("size_bytes", len(content)),
		),
	)
	defer span.End()

	functions, err := e.extract(ctx, lang, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("function_count", len(functions)))

	e.logger.Debug("extracted functions",
		slog.String("file", filename),
		slog.String("language", lang.Name),
		slog.Int("count", len(functions)))
	return functions, nil
}

func (e *Extractor) extract(ctx context.Context, lang Language, content []byte) ([]Function, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled after tree-sitter: %w", err)
	}

	functions := make([]Function, 0)
	root := tree.RootNode()
	if root == nil {
		return functions, nil
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		if node == nil || node.Type() != lang.FunctionNodeType {
			continue
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(content)
		if name == "" {
			continue
		}
		functions = append(functions, Function{
			Name:      name,
			Code:      node.Content(content),
			StartLine: int(node.StartPoint().Row),
			EndLine:   int(node.EndPoint().Row),
		})
	}
	return functions, nil
}
