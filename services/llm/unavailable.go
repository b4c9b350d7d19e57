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
	"fmt"
)

// UnavailableClient fails every call with the error that prevented the
// real client from being built. It lets the service start without a key
// and store placeholder explanations instead.
type UnavailableClient struct {
	provider string
	model    string
	err      error
}

// NewUnavailableClient returns a Client whose calls all fail with err.
func NewUnavailableClient(provider, model string, err error) *UnavailableClient {
	return &UnavailableClient{provider: provider, model: model, err: err}
}

// Generate implements Client.
func (c *UnavailableClient) Generate(ctx context.Context, _ string, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s client unavailable: %w", c.provider, c.err)
}

// Provider implements Client.
func (c *UnavailableClient) Provider() string { return c.provider }

// Model implements Client.
func (c *UnavailableClient) Model() string { return c.model }
