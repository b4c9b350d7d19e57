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
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
)

// ErrorResponse is the body of 4xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// DetailResponse is the body of a failed /analyze-file request.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// AnalyzeResponse is the body of a successful /analyze-file request.
type AnalyzeResponse struct {
	Message            string                   `json:"message"`
	Filename           string                   `json:"filename"`
	Status             string                   `json:"status"`
	Functions          int                      `json:"functions"`
	FailedExplanations int                      `json:"failed_explanations"`
	Archived           string                   `json:"archived,omitempty"`
	Details            []ingest.FunctionSummary `json:"details"`
}

// CodeRequest is the body of /refactor and /generate-tests. The key must
// be present; an empty string is forwarded to the model unchanged.
type CodeRequest struct {
	Code *string `json:"code" binding:"required"`
}

// RefactorResponse is the body of /refactor.
type RefactorResponse struct {
	RefactoredCode string `json:"refactored_code"`
}

// TestsResponse is the body of /generate-tests.
type TestsResponse struct {
	TestCode string `json:"test_code"`
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
