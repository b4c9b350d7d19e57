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
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient throttles outbound calls to a provider.
//
// Description:
//
//	Uploads with many functions fan out into many explanation calls.
//	RateLimitedClient spaces them out to at most requestsPerMinute,
//	blocking the caller until a token is available or ctx is done.
//	It never retries a failed call.
//
// Thread Safety: Safe for concurrent use.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps next with a limiter allowing
// requestsPerMinute calls with a burst of one.
func NewRateLimitedClient(next Client, requestsPerMinute int) *RateLimitedClient {
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Provider implements Client.
func (c *RateLimitedClient) Provider() string { return c.next.Provider() }

// Model implements Client.
func (c *RateLimitedClient) Model() string { return c.next.Model() }

// Generate implements Client.
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit wait: %w", c.next.Provider(), err)
	}
	return c.next.Generate(ctx, prompt, params)
}
