// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
)

type recordingIngester struct {
	mu    sync.Mutex
	files map[string]string
}

func (r *recordingIngester) Run(_ context.Context, filename string, content []byte) (*ingest.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = map[string]string{}
	}
	r.files[filename] = string(content)
	return &ingest.Summary{Filename: filename}, nil
}

func startWatcher(t *testing.T, root string, ing Ingester) <-chan string {
	t.Helper()
	done := make(chan string, 16)
	w, err := New(root, ing,
		WithDebounce(50*time.Millisecond),
		WithOnIngested(func(_ string, s *ingest.Summary, err error) {
			if err == nil {
				done <- s.Filename
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})
	return done
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case name := <-ch:
		return name
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion")
		return ""
	}
}

func TestWatcher_IngestsWrittenFile(t *testing.T) {
	root := t.TempDir()
	ing := &recordingIngester{}
	done := startWatcher(t, root, ing)

	require.NoError(t, os.WriteFile(filepath.Join(root, "legacy.py"), []byte("def f():\n    pass\n"), 0o644))

	assert.Equal(t, "legacy.py", waitFor(t, done))
	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, "def f():\n    pass\n", ing.files["legacy.py"])
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	done := startWatcher(t, root, &recordingIngester{})

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "util.go"), []byte("package pkg\n"), 0o644))

	assert.Equal(t, "pkg/util.go", waitFor(t, done))
}

func TestWatcher_HandleFiltersEvents(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, &recordingIngester{})
	require.NoError(t, err)
	defer w.fs.Close()

	py := filepath.Join(root, "a.py")
	txt := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(py, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))

	assert.True(t, w.handle(fsnotify.Event{Name: py, Op: fsnotify.Write}))
	assert.False(t, w.handle(fsnotify.Event{Name: txt, Op: fsnotify.Write}), "unsupported extension")
	assert.False(t, w.handle(fsnotify.Event{Name: py, Op: fsnotify.Remove}), "removals are ignored")
	assert.False(t, w.handle(fsnotify.Event{Name: filepath.Join(root, "gone.py"), Op: fsnotify.Create}), "vanished file")
	assert.Len(t, w.pending, 1)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(t.TempDir(), nil)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), &recordingIngester{})
	assert.Error(t, err)
}
