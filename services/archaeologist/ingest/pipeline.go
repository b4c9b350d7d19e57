// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest runs one source file through extraction, per-function
// explanation and the graph upsert.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/extract"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphstore"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

const instrumentationName = "archaeologist.ingest"

// DefaultFailurePlaceholder is stored as the explanation of a function
// the model could not explain.
const DefaultFailurePlaceholder = "Analysis failed."

// FunctionExtractor finds the top-level functions of a file.
type FunctionExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) ([]extract.Function, error)
}

// Explainer explains one function.
type Explainer interface {
	Explain(ctx context.Context, code, language string) llm.Result
}

// Upserter merges a file and its functions into the graph.
type Upserter interface {
	UpsertFile(ctx context.Context, filename string, functions []graphstore.FunctionRecord) error
}

// FunctionSummary describes one ingested function.
type FunctionSummary struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Explained bool   `json:"explained"`
}

// Summary reports the outcome of one ingestion.
type Summary struct {
	Filename           string            `json:"filename"`
	Language           string            `json:"language"`
	Functions          []FunctionSummary `json:"functions"`
	FailedExplanations int               `json:"failed_explanations"`
	Duration           time.Duration     `json:"duration"`
}

// FunctionCount returns the number of functions stored.
func (s *Summary) FunctionCount() int {
	return len(s.Functions)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFailurePlaceholder sets the explanation stored when the model fails.
func WithFailurePlaceholder(text string) Option {
	return func(p *Pipeline) {
		if text != "" {
			p.placeholder = text
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMeter records ingestion metrics on meter instead of the global
// meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(p *Pipeline) {
		if meter != nil {
			p.meter = meter
		}
	}
}

// Pipeline composes extraction, explanation and the graph upsert.
//
// Description:
//
//	Functions are explained one at a time in source order. A failed
//	explanation is replaced by the placeholder and never fails the run.
//	Extraction and store errors are returned wrapped.
//
// Thread Safety: Safe for concurrent use if its collaborators are.
type Pipeline struct {
	extractor   FunctionExtractor
	explainer   Explainer
	store       Upserter
	placeholder string
	logger      *slog.Logger
	meter       metric.Meter

	files        metric.Int64Counter
	functions    metric.Int64Counter
	failures     metric.Int64Counter
	fileDuration metric.Float64Histogram
}

// NewPipeline creates a Pipeline.
//
// Inputs:
//   - extractor: Finds functions. Must not be nil.
//   - explainer: Explains functions. Must not be nil.
//   - store: Receives the merged graph. Must not be nil.
//   - opts: Optional settings.
//
// Outputs:
//   - *Pipeline: The pipeline.
//   - error: Non-nil if a collaborator is nil or an instrument cannot be
//     created.
func NewPipeline(extractor FunctionExtractor, explainer Explainer, store Upserter, opts ...Option) (*Pipeline, error) {
	if extractor == nil || explainer == nil || store == nil {
		return nil, fmt.Errorf("ingest: extractor, explainer and store are required")
	}
	p := &Pipeline{
		extractor:   extractor,
		explainer:   explainer,
		store:       store,
		placeholder: DefaultFailurePlaceholder,
		logger:      slog.Default(),
		meter:       otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.files, err = p.meter.Int64Counter("archaeologist_ingest_files_total",
		metric.WithDescription("Files ingested, by outcome")); err != nil {
		return nil, fmt.Errorf("creating files counter: %w", err)
	}
	if p.functions, err = p.meter.Int64Counter("archaeologist_ingest_functions_total",
		metric.WithDescription("Functions stored in the graph")); err != nil {
		return nil, fmt.Errorf("creating functions counter: %w", err)
	}
	if p.failures, err = p.meter.Int64Counter("archaeologist_ingest_explanation_failures_total",
		metric.WithDescription("Explanations replaced by the placeholder")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if p.fileDuration, err = p.meter.Float64Histogram("archaeologist_ingest_file_duration_seconds",
		metric.WithDescription("Time to ingest one file"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return p, nil
}

// Run ingests one file.
//
// Inputs:
//   - ctx: Context for every collaborator call. Callers that must not
//     abort part way detach it with context.WithoutCancel.
//   - filename: Name stored on the File node. Also selects the grammar.
//   - content: Raw source text.
//
// Outputs:
//   - *Summary: What was stored. Nil on error.
//   - error: Wrapped extraction or store error.
func (p *Pipeline) Run(ctx context.Context, filename string, content []byte) (*Summary, error) {
	start := time.Now()
	lang := extract.LanguageFor(filename)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ingest.Pipeline.Run",
		trace.WithAttributes(
			attribute.String("file", filename),
			attribute.String("language", lang.Name),
			attribute.Int("bytes", len(content)),
		),
	)
	defer span.End()

	logger := p.logger.With(slog.String("file", filename))

	fail := func(stage string, err error) (*Summary, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.files.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", stage+"_error")))
		p.fileDuration.Record(ctx, time.Since(start).Seconds())
		logger.Error("ingestion failed",
			slog.String("stage", stage),
			slog.String("error", llm.SafeLogString(err.Error())))
		return nil, fmt.Errorf("%s %s: %w", stage, filename, err)
	}

	functions, err := p.extractor.Extract(ctx, filename, content)
	if err != nil {
		return fail("extract", err)
	}
	logger.Info("functions extracted", slog.Int("count", len(functions)))

	summary := &Summary{
		Filename:  filename,
		Language:  lang.DisplayName,
		Functions: make([]FunctionSummary, 0, len(functions)),
	}
	records := make([]graphstore.FunctionRecord, 0, len(functions))
	for _, fn := range functions {
		result := p.explainer.Explain(ctx, fn.Code, lang.DisplayName)
		if !result.OK() {
			summary.FailedExplanations++
			logger.Warn("explanation failed, storing placeholder",
				slog.String("function", fn.Name),
				slog.String("error", llm.SafeLogString(result.Err.Error())))
		}
		records = append(records, graphstore.FunctionRecord{
			Name:        fn.Name,
			Code:        fn.Code,
			StartLine:   fn.StartLine,
			Explanation: result.Or(p.placeholder),
		})
		summary.Functions = append(summary.Functions, FunctionSummary{
			Name:      fn.Name,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			Explained: result.OK(),
		})
	}

	if err := p.store.UpsertFile(ctx, filename, records); err != nil {
		return fail("store", err)
	}

	summary.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("functions", len(records)),
		attribute.Int("failed_explanations", summary.FailedExplanations),
	)
	p.files.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	p.functions.Add(ctx, int64(len(records)))
	p.failures.Add(ctx, int64(summary.FailedExplanations))
	p.fileDuration.Record(ctx, summary.Duration.Seconds())

	logger.Info("file stored in graph",
		slog.Int("functions", len(records)),
		slog.Int("failed_explanations", summary.FailedExplanations),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}
