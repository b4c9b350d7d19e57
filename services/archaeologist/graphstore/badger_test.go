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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, scope Scope) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(openTestDB(t), scope, nil)
	require.NoError(t, err)
	return store
}

func collectTriples(t *testing.T, store Store, limit int) []Triple {
	t.Helper()
	var triples []Triple
	err := store.StreamTriples(context.Background(), limit, func(tr Triple) error {
		triples = append(triples, tr)
		return nil
	})
	require.NoError(t, err)
	return triples
}

func TestNewBadgerStore_NilDB(t *testing.T) {
	_, err := NewBadgerStore(nil, ScopeGlobal, nil)
	assert.Error(t, err)
}

func TestBadgerStore_UpsertAndStream(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	ctx := context.Background()

	require.NoError(t, store.UpsertFile(ctx, "legacy.py", sampleFunctions()))

	triples := collectTriples(t, store, 100)
	require.Len(t, triples, 2)
	for _, tr := range triples {
		assert.True(t, tr.Source.HasLabel(LabelFile))
		assert.True(t, tr.Target.HasLabel(LabelFunction))
		assert.Equal(t, RelDefines, tr.Rel.Type)
		assert.Equal(t, tr.Source.ID, tr.Rel.StartID)
		assert.Equal(t, tr.Target.ID, tr.Rel.EndID)
		name, _ := tr.Source.StringProp(PropName)
		assert.Equal(t, "legacy.py", name)
	}

	load := triples[0].Target
	code, _ := load.StringProp(PropCode)
	explanation, _ := load.StringProp(PropExplanation)
	assert.Equal(t, "def load(): pass", code)
	assert.Equal(t, "Loads.", explanation)
	assert.Equal(t, int64(0), load.Props[PropStartLine])
}

func TestBadgerStore_SameFileTwiceIsIdempotent(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	ctx := context.Background()

	require.NoError(t, store.UpsertFile(ctx, "legacy.py", sampleFunctions()))
	require.NoError(t, store.UpsertFile(ctx, "legacy.py", sampleFunctions()))

	triples := collectTriples(t, store, 100)
	assert.Len(t, triples, 2, "no duplicate edges")
	assert.Equal(t, triples[0].Source.ID, triples[1].Source.ID, "one File node")
}

func TestBadgerStore_GlobalScopeSharesFunctionNodes(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	ctx := context.Background()

	require.NoError(t, store.UpsertFile(ctx, "a.py", []FunctionRecord{
		{Name: "helper", Code: "def helper(): return 'a'", Explanation: "From a."},
	}))
	require.NoError(t, store.UpsertFile(ctx, "b.py", []FunctionRecord{
		{Name: "helper", Code: "def helper(): return 'b'", Explanation: "From b."},
	}))

	triples := collectTriples(t, store, 100)
	require.Len(t, triples, 2, "one edge per defining file")
	assert.NotEqual(t, triples[0].Source.ID, triples[1].Source.ID)
	assert.Equal(t, triples[0].Target.ID, triples[1].Target.ID, "single shared Function node")

	for _, tr := range triples {
		code, _ := tr.Target.StringProp(PropCode)
		assert.Equal(t, "def helper(): return 'a'", code, "first write wins")
	}
}

func TestBadgerStore_FileScopeKeepsFunctionsApart(t *testing.T) {
	store := newTestStore(t, ScopeFile)
	ctx := context.Background()

	require.NoError(t, store.UpsertFile(ctx, "a.py", []FunctionRecord{{Name: "helper", Code: "a"}}))
	require.NoError(t, store.UpsertFile(ctx, "b.py", []FunctionRecord{{Name: "helper", Code: "b"}}))

	triples := collectTriples(t, store, 100)
	require.Len(t, triples, 2)
	assert.NotEqual(t, triples[0].Target.ID, triples[1].Target.ID)
	assert.NotContains(t, triples[0].Target.ID, "\x00")

	byFile := map[string]string{}
	for _, tr := range triples {
		file, _ := tr.Target.StringProp(PropFile)
		code, _ := tr.Target.StringProp(PropCode)
		byFile[file] = code
	}
	assert.Equal(t, map[string]string{"a.py": "a", "b.py": "b"}, byFile)
}

func TestBadgerStore_FileWithoutFunctions(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	require.NoError(t, store.UpsertFile(context.Background(), "empty.py", nil))
	assert.Empty(t, collectTriples(t, store, 100), "file node alone produces no triples")
}

func TestBadgerStore_Limit(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	fns := make([]FunctionRecord, 0, 150)
	for i := 0; i < 150; i++ {
		fns = append(fns, FunctionRecord{Name: fmt.Sprintf("f%03d", i), Code: "pass"})
	}
	require.NoError(t, store.UpsertFile(context.Background(), "big.py", fns))

	assert.Len(t, collectTriples(t, store, 100), 100)
	assert.Len(t, collectTriples(t, store, 1000), 150)
}

func TestBadgerStore_StopStream(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	require.NoError(t, store.UpsertFile(context.Background(), "legacy.py", sampleFunctions()))

	calls := 0
	err := store.StreamTriples(context.Background(), 100, func(Triple) error {
		calls++
		return ErrStopStream
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBadgerStore_CallbackErrorPropagates(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	require.NoError(t, store.UpsertFile(context.Background(), "legacy.py", sampleFunctions()))

	boom := errors.New("boom")
	err := store.StreamTriples(context.Background(), 100, func(Triple) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestBadgerStore_CancelledContextKeepsEarlierMerges(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.UpsertFile(ctx, "legacy.py", sampleFunctions())
	require.ErrorIs(t, err, context.Canceled)

	// The file merge ran before the cancellation was observed.
	err = store.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefixFile + "legacy.py"))
		return err
	})
	assert.NoError(t, err)
	assert.Empty(t, collectTriples(t, store, 100))
}

func TestBadgerStore_ConcurrentUpserts(t *testing.T) {
	store := newTestStore(t, ScopeGlobal)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.UpsertFile(ctx, fmt.Sprintf("f%d.py", i), []FunctionRecord{{Name: "shared", Code: "pass"}})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	triples := collectTriples(t, store, 100)
	require.Len(t, triples, 8)
	for _, tr := range triples {
		assert.Equal(t, triples[0].Target.ID, tr.Target.ID)
	}
}

func TestBadgerStore_PingAndClose(t *testing.T) {
	store, err := OpenBadger(BadgerConfig{}, nil)
	require.NoError(t, err)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close(context.Background()))
	assert.ErrorIs(t, store.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, store.UpsertFile(context.Background(), "x.py", nil), ErrClosed)
	assert.NoError(t, store.Close(context.Background()), "second close is a no-op")
}

func TestBadgerStore_CloseLeavesBorrowedDBOpen(t *testing.T) {
	db := openTestDB(t)
	store, err := NewBadgerStore(db, ScopeGlobal, nil)
	require.NoError(t, err)

	require.NoError(t, store.Close(context.Background()))
	assert.False(t, db.IsClosed())
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"": ScopeGlobal, "global": ScopeGlobal, "file": ScopeFile} {
		got, err := ParseScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScope("project")
	assert.Error(t, err)
}
