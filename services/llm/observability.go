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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// llmTracerName is the shared OTel tracer name for all provider clients.
const llmTracerName = "archaeologist.llm"

// Package-level Prometheus metrics for provider calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// llmCallDuration measures the duration of provider calls.
	//
	// Labels:
	//   - provider: "gemini", "openai", "anthropic", "ollama"
	//   - status: "success" or "error"
	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archaeologist",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of LLM provider calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// llmCallsTotal counts provider calls.
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archaeologist",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM provider calls.",
		},
		[]string{"provider", "status"},
	)

	// llmErrorsTotal counts provider errors by type.
	//
	// Labels:
	//   - provider: "gemini", "openai", "anthropic", "ollama"
	//   - error_type: "timeout", "auth", "rate_limit", "server", "empty", "unknown"
	llmErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archaeologist",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total LLM provider errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)

// classifyError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error to categorize it into one of the predefined error
//	types. Used for Prometheus labels to avoid high cardinality.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server", "empty",
//	         "unknown". Returns empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	if errors.Is(err, ErrEmptyResponse) {
		return "empty"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "401 unauthorized") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "429 too many requests") ||
		strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "service unavailable"):
		return "server"
	default:
		return "unknown"
	}
}

// recordMetrics records Prometheus metrics for a completed provider call.
func recordMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		llmErrorsTotal.WithLabelValues(provider, classifyError(err)).Inc()
	}
	llmCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	llmCallsTotal.WithLabelValues(provider, status).Inc()
}

// InstrumentedClient wraps a Client with an OTel span and Prometheus
// metrics per call.
//
// Thread Safety: Safe for concurrent use if the wrapped client is.
type InstrumentedClient struct {
	next Client
}

// NewInstrumentedClient wraps next with tracing and metrics.
func NewInstrumentedClient(next Client) *InstrumentedClient {
	return &InstrumentedClient{next: next}
}

// Provider implements Client.
func (c *InstrumentedClient) Provider() string { return c.next.Provider() }

// Model implements Client.
func (c *InstrumentedClient) Model() string { return c.next.Model() }

// Generate implements Client.
func (c *InstrumentedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	provider := c.next.Provider()
	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.Generate",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", c.next.Model()),
			attribute.Int("prompt_len", len(prompt)),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := c.next.Generate(ctx, prompt, params)
	duration := time.Since(start)
	recordMetrics(provider, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, SafeLogString(err.Error()))
		return "", err
	}
	span.SetAttributes(attribute.Int("response_len", len(text)))
	return text, nil
}
