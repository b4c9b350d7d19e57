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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/transform"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// readyTimeout bounds the store ping in HandleReady.
const readyTimeout = 3 * time.Second

// Handlers serves the HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers validates svc and returns its handlers.
func NewHandlers(svc *Service) (*Handlers, error) {
	if svc == nil {
		return nil, fmt.Errorf("service must not be nil")
	}
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	return &Handlers{svc: svc}, nil
}

func (h *Handlers) logger(c *gin.Context, handler string) *slog.Logger {
	return h.svc.Logger.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

// HandleStatus handles GET /.
func (h *Handlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "System Online", Model: h.svc.Config.ModelName})
}

// HandleAnalyzeFile handles POST /analyze-file.
//
// Description:
//
//	Reads the multipart field "file", archives it, then runs ingestion on a
//	context detached from the request so a client disconnect does not stop
//	in-flight model calls or graph writes.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Missing file field
//	413 Request Entity Too Large: Body exceeds the upload limit
//	500 Internal Server Error: DetailResponse with the failure text
func (h *Handlers) HandleAnalyzeFile(c *gin.Context) {
	logger := h.logger(c, "HandleAnalyzeFile")

	if c.Request.ContentLength > h.svc.Config.MaxUploadBytes {
		h.rejectTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.svc.Config.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rejectTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "multipart field 'file' is required",
			Code:  "MISSING_FILE",
		})
		return
	}

	content, err := readUpload(header)
	if err != nil {
		logger.Error("reading upload failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: err.Error()})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	filename := header.Filename

	location, err := h.svc.Archive.Put(ctx, filename, content)
	if err != nil {
		logger.Error("archiving upload failed",
			slog.String("file", filename),
			slog.String("error", llm.SafeLogString(err.Error())))
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: err.Error()})
		return
	}

	summary, err := h.svc.Ingester.Run(ctx, filename, content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: llm.SafeLogString(err.Error())})
		return
	}

	logger.Info("file analyzed",
		slog.String("file", filename),
		slog.Int("functions", summary.FunctionCount()),
		slog.String("archived", location))
	c.JSON(http.StatusOK, AnalyzeResponse{
		Message:            "File processed successfully",
		Filename:           filename,
		Status:             "stored_in_graph",
		Functions:          summary.FunctionCount(),
		FailedExplanations: summary.FailedExplanations,
		Archived:           location,
		Details:            summary.Functions,
	})
}

func (h *Handlers) rejectTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error: fmt.Sprintf("upload exceeds %d bytes", h.svc.Config.MaxUploadBytes),
		Code:  "UPLOAD_TOO_LARGE",
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return content, nil
}

// HandleGraph handles GET /graph.
func (h *Handlers) HandleGraph(c *gin.Context) {
	g, err := h.svc.Graph.Graph(c.Request.Context())
	if err != nil {
		h.logger(c, "HandleGraph").Error("graph query failed",
			slog.String("error", llm.SafeLogString(err.Error())))
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: llm.SafeLogString(err.Error())})
		return
	}
	c.JSON(http.StatusOK, g)
}

// HandleRefactor handles POST /refactor. A model failure is reported in
// the body as an error comment with status 200.
func (h *Handlers) HandleRefactor(c *gin.Context) {
	req, ok := bindCode(c)
	if !ok {
		return
	}
	result := h.svc.Transform.Refactor(c.Request.Context(), *req.Code)
	c.JSON(http.StatusOK, RefactorResponse{
		RefactoredCode: result.Or(transform.Fallback(transform.KindRefactor, result.Err)),
	})
}

// HandleGenerateTests handles POST /generate-tests. Failures are reported
// the same way as HandleRefactor.
func (h *Handlers) HandleGenerateTests(c *gin.Context) {
	req, ok := bindCode(c)
	if !ok {
		return
	}
	result := h.svc.Transform.GenerateTests(c.Request.Context(), *req.Code)
	c.JSON(http.StatusOK, TestsResponse{
		TestCode: result.Or(transform.Fallback(transform.KindTests, result.Err)),
	})
}

func bindCode(c *gin.Context) (CodeRequest, bool) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "request body must be JSON with a 'code' string field",
			Code:  "INVALID_REQUEST",
		})
		return req, false
	}
	return req, true
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// HandleReady handles GET /ready by pinging the graph store.
func (h *Handlers) HandleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.svc.Store.Ping(ctx); err != nil {
		h.logger(c, "HandleReady").Warn("graph store not ready", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not_ready", Error: llm.SafeLogString(err.Error())})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}
