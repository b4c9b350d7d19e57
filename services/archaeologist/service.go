// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archaeologist is the HTTP surface of the Code Archaeologist: file
// upload and ingestion, the graph view, and the refactor and test
// generation endpoints.
package archaeologist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/archive"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphview"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// Ingester runs one file through the ingestion pipeline.
type Ingester interface {
	Run(ctx context.Context, filename string, content []byte) (*ingest.Summary, error)
}

// GraphReader builds the visualization graph.
type GraphReader interface {
	Graph(ctx context.Context) (*graphview.Graph, error)
}

// Transformer rewrites code and generates tests.
type Transformer interface {
	Refactor(ctx context.Context, code string) llm.Result
	GenerateTests(ctx context.Context, code string) llm.Result
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceConfig holds the HTTP-facing settings.
type ServiceConfig struct {
	// ModelName is reported by GET /.
	ModelName string

	// MaxUploadBytes bounds /analyze-file request bodies.
	MaxUploadBytes int64
}

// Service bundles the components the handlers call. Every field except
// Archive is required.
type Service struct {
	Config    ServiceConfig
	Ingester  Ingester
	Graph     GraphReader
	Transform Transformer
	Store     Pinger
	Archive   archive.Store
	Logger    *slog.Logger
}

// Validate checks that required components are present and fills
// defaults.
func (s *Service) Validate() error {
	switch {
	case s.Ingester == nil:
		return fmt.Errorf("service: ingester is required")
	case s.Graph == nil:
		return fmt.Errorf("service: graph reader is required")
	case s.Transform == nil:
		return fmt.Errorf("service: transformer is required")
	case s.Store == nil:
		return fmt.Errorf("service: store pinger is required")
	}
	if s.Archive == nil {
		s.Archive = archive.Discard{}
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Config.MaxUploadBytes <= 0 {
		s.Config.MaxUploadBytes = 10 << 20
	}
	return nil
}
