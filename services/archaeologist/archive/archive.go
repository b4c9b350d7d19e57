// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive keeps a copy of every uploaded source file before it is
// ingested.
package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Backend names.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendNone  = "none"
)

// Config selects and configures a backend.
type Config struct {
	Backend         string
	Dir             string
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	CredentialsFile string
	AccessKey       string
	SecretKey       string
}

// Store saves uploaded files.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Put saves content under name and returns where it was written.
	// Only the base name is used; directory components are dropped.
	Put(ctx context.Context, name string, content []byte) (string, error)

	// Close releases the backend's client.
	Close() error
}

// New creates the Store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendLocal, "":
		return NewLocal(cfg.Dir)
	case BackendGCS:
		return newGCS(ctx, cfg)
	case BackendS3:
		return newS3(ctx, cfg)
	case BackendNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.Backend)
	}
}

// objectName strips directory components from an uploaded filename.
func objectName(name string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	return base, nil
}

// resolveKey joins prefix and the base of name into an object key.
func resolveKey(prefix, name string) (string, error) {
	base, err := objectName(name)
	if err != nil {
		return "", err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base, nil
	}
	return path.Join(prefix, base), nil
}

// Discard is a Store that keeps nothing.
type Discard struct{}

// Put implements Store.
func (Discard) Put(context.Context, string, []byte) (string, error) { return "", nil }

// Close implements Store.
func (Discard) Close() error { return nil }
