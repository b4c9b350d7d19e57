// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher re-ingests source files when they change on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/extract"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester ingests one file. *ingest.Pipeline satisfies it.
type Ingester interface {
	Run(ctx context.Context, filename string, content []byte) (*ingest.Summary, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before ingestion.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOnIngested registers a callback run after each ingestion attempt.
// summary is nil when err is non-nil.
func WithOnIngested(fn func(path string, summary *ingest.Summary, err error)) Option {
	return func(w *Watcher) {
		w.onIngested = fn
	}
}

// Watcher watches a directory tree and ingests supported source files
// after they are created or written.
//
// Description:
//
//	Events are collected per path and flushed once no new event has
//	arrived for the debounce period. Files are ingested one at a time in
//	path order, under their slash-separated path relative to the root.
//	Removals are ignored because the graph never deletes.
//
// Thread Safety: Run must be called at most once.
type Watcher struct {
	root       string
	ingester   Ingester
	fs         *fsnotify.Watcher
	debounce   time.Duration
	logger     *slog.Logger
	onIngested func(path string, summary *ingest.Summary, err error)
	pending    map[string]struct{}
}

// New creates a Watcher on root. Call Run to start it.
func New(root string, ingester Ingester, opts ...Option) (*Watcher, error) {
	if ingester == nil {
		return nil, fmt.Errorf("watcher: ingester must not be nil")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		ingester: ingester,
		fs:       fsw,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__"
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	w.logger.Info("watching for source changes", slog.String("root", w.root))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handle records event and reports whether anything became pending.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !skipDir(info.Name()) {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory",
					slog.String("path", event.Name), slog.String("error", err.Error()))
			}
		}
		return false
	}
	if !extract.Supported(event.Name) {
		return false
	}
	w.pending[event.Name] = struct{}{}
	return true
}

func (w *Watcher) flush(ctx context.Context) {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		summary, err := w.ingestFile(ctx, path)
		if err != nil {
			w.logger.Error("re-ingestion failed",
				slog.String("path", path),
				slog.String("error", llm.SafeLogString(err.Error())))
		}
		if w.onIngested != nil {
			w.onIngested(path, summary, err)
		}
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) (*ingest.Summary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	name, err := filepath.Rel(w.root, path)
	if err != nil {
		name = filepath.Base(path)
	}
	return w.ingester.Run(ctx, filepath.ToSlash(name), content)
}
