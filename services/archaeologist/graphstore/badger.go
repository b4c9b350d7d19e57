// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Key layout:
//
//	file/<name>                   -> fileRecord
//	func/<key>                    -> functionRecord
//	rel/<file>\x00<key>           -> edgeRecord
//
// <key> is the function name in ScopeGlobal and <file>\x00<name> in
// ScopeFile.
const (
	keyPrefixFile = "file/"
	keyPrefixFunc = "func/"
	keyPrefixRel  = "rel/"
	keySep        = "\x00"

	// maxConflictRetries bounds retries of a merge that lost an optimistic
	// transaction race.
	maxConflictRetries = 5
)

type fileRecord struct {
	Name string `json:"name"`
}

type functionRecord struct {
	Name        string `json:"name"`
	File        string `json:"file,omitempty"`
	Code        string `json:"code"`
	StartLine   int    `json:"start_line"`
	Explanation string `json:"explanation"`
}

type edgeRecord struct {
	File        string `json:"file"`
	FunctionKey string `json:"function_key"`
}

// BadgerStore implements Store on an embedded BadgerDB.
//
// Description:
//
//	Nodes and edges are JSON records under prefixed keys. The file merge
//	commits in one transaction and each function merge, node plus edge,
//	commits in its own, so a failure part way through UpsertFile keeps the
//	merges that came before it. Function attributes are written only when
//	the node key is new.
//
// Thread Safety: Safe for concurrent use. Conflicting merges are retried.
type BadgerStore struct {
	db     *badger.DB
	owned  bool
	scope  Scope
	logger *slog.Logger
}

// BadgerConfig configures OpenBadger.
type BadgerConfig struct {
	// Path is the data directory. Empty opens an in-memory database.
	Path  string
	Scope Scope
}

// OpenBadger opens (or creates) a BadgerDB and returns a store that owns it.
func OpenBadger(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", cfg.Path, err)
	}
	store, err := NewBadgerStore(db, cfg.Scope, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewBadgerStore wraps an already open database. The caller keeps
// ownership of db; Close on the returned store does not close it.
//
// Outputs:
//   - *BadgerStore: The store.
//   - error: Non-nil if db is nil.
func NewBadgerStore(db *badger.DB, scope Scope, logger *slog.Logger) (*BadgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if scope == "" {
		scope = ScopeGlobal
	}
	return &BadgerStore{db: db, scope: scope, logger: logger}, nil
}

func (s *BadgerStore) functionKey(filename, name string) string {
	if s.scope == ScopeFile {
		return filename + keySep + name
	}
	return name
}

// UpsertFile implements Store.
func (s *BadgerStore) UpsertFile(ctx context.Context, filename string, functions []FunctionRecord) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphstore.BadgerStore.UpsertFile",
		trace.WithAttributes(
			attribute.String("file", filename),
			attribute.Int("function_count", len(functions)),
		),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("badger upsert %s: %w", filename, err)
	}

	if s.db.IsClosed() {
		return fail(ErrClosed)
	}

	if err := s.update(func(txn *badger.Txn) error {
		return mergeFile(txn, filename)
	}); err != nil {
		return fail(fmt.Errorf("merging file: %w", err))
	}

	for i, fn := range functions {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		key := s.functionKey(filename, fn.Name)
		rec := functionRecord{
			Name:        fn.Name,
			Code:        fn.Code,
			StartLine:   fn.StartLine,
			Explanation: fn.Explanation,
		}
		if s.scope == ScopeFile {
			rec.File = filename
		}
		if err := s.update(func(txn *badger.Txn) error {
			if err := mergeFile(txn, filename); err != nil {
				return err
			}
			if err := mergeFunction(txn, key, rec); err != nil {
				return err
			}
			return mergeEdge(txn, filename, key)
		}); err != nil {
			return fail(fmt.Errorf("function %d of %d (%s): %w", i+1, len(functions), fn.Name, err))
		}
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("badger transaction conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return err
}

func mergeFile(txn *badger.Txn, filename string) error {
	key := []byte(keyPrefixFile + filename)
	if exists, err := keyExists(txn, key); err != nil || exists {
		return err
	}
	return setJSON(txn, key, fileRecord{Name: filename})
}

// mergeFunction writes rec only if key is new; an existing node keeps the
// attributes it was created with.
func mergeFunction(txn *badger.Txn, key string, rec functionRecord) error {
	k := []byte(keyPrefixFunc + key)
	if exists, err := keyExists(txn, k); err != nil || exists {
		return err
	}
	return setJSON(txn, k, rec)
}

func mergeEdge(txn *badger.Txn, filename, funcKey string) error {
	k := []byte(keyPrefixRel + filename + keySep + funcKey)
	if exists, err := keyExists(txn, k); err != nil || exists {
		return err
	}
	return setJSON(txn, k, edgeRecord{File: filename, FunctionKey: funcKey})
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// StreamTriples implements Store. Triples are visited in key order.
func (s *BadgerStore) StreamTriples(ctx context.Context, limit int, fn func(Triple) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphstore.BadgerStore.StreamTriples",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if s.db.IsClosed() {
		return ErrClosed
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRel)

		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Seek(opts.Prefix); it.Valid() && count < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var edge edgeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				s.logger.Warn("skipping corrupt edge",
					slog.String("key", string(it.Item().Key())), slog.Any("error", err))
				continue
			}

			triple, err := loadTriple(txn, edge)
			if err != nil {
				return err
			}
			count++
			if err := fn(triple); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopStream) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("badger triple scan: %w", err)
	}
	return nil
}

func loadTriple(txn *badger.Txn, edge edgeRecord) (Triple, error) {
	var file fileRecord
	if err := getJSON(txn, []byte(keyPrefixFile+edge.File), &file); err != nil {
		return Triple{}, fmt.Errorf("loading file %q: %w", edge.File, err)
	}
	var fn functionRecord
	if err := getJSON(txn, []byte(keyPrefixFunc+edge.FunctionKey), &fn); err != nil {
		return Triple{}, fmt.Errorf("loading function %q: %w", edge.FunctionKey, err)
	}

	fileID := "file:" + file.Name
	displayKey := strings.ReplaceAll(edge.FunctionKey, keySep, "/")
	funcID := "function:" + displayKey
	funcProps := map[string]any{
		PropName:        fn.Name,
		PropCode:        fn.Code,
		PropStartLine:   int64(fn.StartLine),
		PropExplanation: fn.Explanation,
	}
	if fn.File != "" {
		funcProps[PropFile] = fn.File
	}

	return Triple{
		Source: Node{ID: fileID, Labels: []string{LabelFile}, Props: map[string]any{PropName: file.Name}},
		Rel: Relationship{
			ID:      "defines:" + file.Name + "->" + displayKey,
			Type:    RelDefines,
			StartID: fileID,
			EndID:   funcID,
		},
		Target: Node{ID: funcID, Labels: []string{LabelFunction}, Props: funcProps},
	}, nil
}

// Ping implements Store.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close implements Store. Only databases opened by OpenBadger are closed.
func (s *BadgerStore) Close(context.Context) error {
	if !s.owned || s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}
