// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/archive"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/config"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/explain"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/extract"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphstore"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphview"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/logging"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/transform"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// app holds the components built once at startup and shared by every
// command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    llm.Client
	store     graphstore.Store
	pipeline  *ingest.Pipeline
	view      *graphview.Service
	transform *transform.Service
}

// loadConfig reads configuration and installs the root logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: configPath, EnvFile: envFile})
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logging.Setup(cfg.Log.Level), nil
}

// buildApp constructs the LLM client, graph store and services.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := newLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(
		extract.NewExtractor(
			extract.WithMaxFileSize(cfg.Server.MaxUploadBytes),
			extract.WithLogger(logger),
		),
		explain.NewExplainer(client, logger, explain.WithParams(cfg.GenerationParams())),
		store,
		ingest.WithFailurePlaceholder(cfg.Ingest.FailurePlaceholder),
		ingest.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	view, err := graphview.NewService(store, graphview.Options{
		Limit:                  cfg.Graph.QueryLimit,
		CodePlaceholder:        cfg.View.CodePlaceholder,
		ExplanationPlaceholder: cfg.View.ExplanationPlaceholder,
	})
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		store:     store,
		pipeline:  pipeline,
		view:      view,
		transform: transform.NewService(client, logger, transform.WithParams(cfg.TransformParams())),
	}, nil
}

// newLLMClient builds the configured client. A missing API key is not
// fatal: every call fails and ingestion stores the placeholder.
func newLLMClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	pcfg, err := cfg.ProviderConfig()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(pcfg)
	if errors.Is(err, llm.ErrMissingAPIKey) {
		logger.Warn("language model unavailable", slog.String("error", err.Error()))
		return llm.NewUnavailableClient(pcfg.Provider, pcfg.Model, err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return client, nil
}

// openStore opens the configured graph backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (graphstore.Store, error) {
	scope, err := graphstore.ParseScope(cfg.Graph.FunctionScope)
	if err != nil {
		return nil, err
	}

	switch cfg.Graph.Backend {
	case config.GraphBackendBadger:
		store, err := graphstore.OpenBadger(graphstore.BadgerConfig{Path: cfg.Graph.BadgerPath, Scope: scope}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("graph store opened", slog.String("backend", "badger"), slog.String("path", cfg.Graph.BadgerPath))
		return store, nil
	default:
		password, err := cfg.Secrets.GraphPassword.Reveal()
		if err != nil {
			return nil, fmt.Errorf("revealing graph password: %w", err)
		}
		store, err := graphstore.OpenNeo4j(ctx, graphstore.Neo4jConfig{
			URI:               cfg.Graph.URI,
			User:              cfg.Graph.User,
			Password:          password,
			Database:          cfg.Graph.Database,
			Scope:             scope,
			EnsureConstraints: cfg.Graph.EnsureConstraints,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("graph store opened", slog.String("backend", "neo4j"), slog.String("uri", cfg.Graph.URI))
		return store, nil
	}
}

// archiveConfig maps configuration to archive settings, revealing the
// AWS keys only for the s3 backend.
func archiveConfig(cfg *config.Config) (archive.Config, error) {
	ac := archive.Config{
		Backend:         cfg.Archive.Backend,
		Dir:             cfg.Archive.Dir,
		Bucket:          cfg.Archive.Bucket,
		Prefix:          cfg.Archive.Prefix,
		Region:          cfg.Archive.Region,
		Endpoint:        cfg.Archive.Endpoint,
		CredentialsFile: cfg.Archive.CredentialsFile,
	}
	if ac.Backend != archive.BackendS3 {
		return ac, nil
	}
	var err error
	if ac.AccessKey, err = cfg.Secrets.AWSAccessKey.Reveal(); err != nil {
		return ac, fmt.Errorf("revealing aws access key: %w", err)
	}
	if ac.SecretKey, err = cfg.Secrets.AWSSecretKey.Reveal(); err != nil {
		return ac, fmt.Errorf("revealing aws secret key: %w", err)
	}
	return ac, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("closing graph store", slog.String("error", err.Error()))
	}
}
