// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore persists the File -DEFINES-> Function graph.
//
// Two backends share the Store interface: Neo4j for deployments and an
// embedded Badger store for local use and tests. Both merge nodes by key,
// set function attributes only when the node is first created, and never
// delete anything.
package graphstore

import (
	"context"
	"errors"
	"fmt"
)

// Graph vocabulary.
const (
	LabelFile     = "File"
	LabelFunction = "Function"
	RelDefines    = "DEFINES"
)

// Node property names.
const (
	PropName        = "name"
	PropCode        = "code"
	PropStartLine   = "start_line"
	PropExplanation = "explanation"
	PropFile        = "file"
)

// Scope controls how Function nodes are keyed.
type Scope string

const (
	// ScopeGlobal keys functions by name alone, so files defining the same
	// name share one node.
	ScopeGlobal Scope = "global"

	// ScopeFile keys functions by (file, name).
	ScopeFile Scope = "file"
)

// ParseScope converts a configuration value into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	case ScopeFile:
		return ScopeFile, nil
	default:
		return "", fmt.Errorf("unknown function scope %q (valid: global, file)", s)
	}
}

// ErrStopStream can be returned from a StreamTriples callback to end the
// stream early without an error.
var ErrStopStream = errors.New("stop stream")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("graph store is closed")

// FunctionRecord is one function to merge under a file.
type FunctionRecord struct {
	Name        string
	Code        string
	StartLine   int
	Explanation string
}

// Node is a stored node as returned by StreamTriples.
type Node struct {
	// ID is the store-assigned element id, stable for the node's lifetime.
	ID     string
	Labels []string
	Props  map[string]any
}

// HasLabel reports whether the node carries label.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// StringProp returns the string property key and whether it was present.
func (n Node) StringProp(key string) (string, bool) {
	v, ok := n.Props[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Relationship is a stored edge.
type Relationship struct {
	ID      string
	Type    string
	StartID string
	EndID   string
}

// Triple is one (source)-[rel]->(target) row.
type Triple struct {
	Source Node
	Rel    Relationship
	Target Node
}

// Store is the graph persistence contract.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// UpsertFile merges the File node for filename, then each function and
	// its DEFINES edge in order. Each merge commits on its own; an error
	// part way leaves earlier merges in place.
	UpsertFile(ctx context.Context, filename string, functions []FunctionRecord) error

	// StreamTriples calls fn for up to limit relationship triples.
	StreamTriples(ctx context.Context, limit int, fn func(Triple) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
