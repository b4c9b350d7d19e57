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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/archive"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      version,
		Traces:       cfg.Telemetry.Traces,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Metrics:      cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	acfg, err := archiveConfig(cfg)
	if err != nil {
		return err
	}
	uploads, err := archive.New(ctx, acfg)
	if err != nil {
		return fmt.Errorf("opening upload archive: %w", err)
	}
	defer uploads.Close()

	handlers, err := archaeologist.NewHandlers(&archaeologist.Service{
		Config: archaeologist.ServiceConfig{
			ModelName:      a.client.Model(),
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
		Ingester:  a.pipeline,
		Graph:     a.view,
		Transform: a.transform,
		Store:     a.store,
		Archive:   uploads,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	router := archaeologist.NewRouter(handlers, archaeologist.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		CORSOrigins: cfg.Server.CORSOrigins,
		Debug:       cfg.Server.Debug,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("code archaeologist listening",
			slog.Int("port", cfg.Server.Port),
			slog.String("provider", a.client.Provider()),
			slog.String("model", a.client.Model()),
			slog.String("graph_backend", cfg.Graph.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
