// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local writes uploads into a directory, replacing any earlier upload of
// the same name.
type Local struct {
	dir string
}

// NewLocal creates dir if needed and returns a Local store rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Put implements Store. The file is written to a temporary name and
// renamed so readers never see a partial upload.
func (l *Local) Put(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base, err := objectName(name)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(l.dir, base)

	tmp, err := os.CreateTemp(l.dir, "."+base+".*")
	if err != nil {
		return "", fmt.Errorf("archiving %s: %w", base, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("archiving %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("archiving %s: %w", base, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("archiving %s: %w", base, err)
	}
	return dest, nil
}

// Close implements Store.
func (l *Local) Close() error { return nil }
