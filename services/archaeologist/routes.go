// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archaeologist

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	Debug       bool
	Logger      *slog.Logger

	// MetricsHandler serves /metrics. Nil uses promhttp.Handler().
	MetricsHandler http.Handler
}

// RegisterRoutes registers the API routes.
//
// Endpoints:
//
//	GET  /               - Status and model name
//	POST /analyze-file   - Upload and ingest a source file
//	GET  /graph          - Node and edge lists for visualization
//	POST /refactor       - Refactor a code snippet
//	POST /generate-tests - Generate unit tests for a code snippet
//	GET  /health         - Liveness
//	GET  /ready          - Readiness (pings the graph store)
func RegisterRoutes(r gin.IRouter, handlers *Handlers) {
	r.GET("/", handlers.HandleStatus)
	r.POST("/analyze-file", handlers.HandleAnalyzeFile)
	r.GET("/graph", handlers.HandleGraph)
	r.POST("/refactor", handlers.HandleRefactor)
	r.POST("/generate-tests", handlers.HandleGenerateTests)

	r.GET("/health", handlers.HandleHealth)
	r.GET("/ready", handlers.HandleReady)
}

// NewRouter builds a gin engine with tracing, request ids, CORS, request
// logging and the API and /metrics routes.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "code-archaeologist"
	}
	metrics := cfg.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(cfg.CORSOrigins))
	router.Use(RequestLogger(cfg.Logger))

	RegisterRoutes(router, handlers)
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}
