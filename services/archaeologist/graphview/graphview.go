// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphview reshapes stored triples into the node and edge lists
// the visualization frontend renders.
package graphview

import (
	"context"
	"fmt"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphstore"
)

// Defaults used when Options leave a field empty.
const (
	DefaultLimit                  = 100
	DefaultCodePlaceholder        = "No code available"
	DefaultExplanationPlaceholder = "No analysis available"
)

// Node kinds reported in NodeData.Kind.
const (
	KindFile     = "File"
	KindFunction = "Function"
)

// TripleSource streams relationship triples. graphstore.Store satisfies it.
type TripleSource interface {
	StreamTriples(ctx context.Context, limit int, fn func(graphstore.Triple) error) error
}

// Options configures a Service.
type Options struct {
	Limit                  int
	CodePlaceholder        string
	ExplanationPlaceholder string
}

// Position is a node's canvas position. Layout happens client side, so it
// is always the origin.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload the frontend reads from a node.
type NodeData struct {
	Label       string `json:"label"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	Kind        string `json:"kind"`
}

// Node is one rendered node.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

// Edge is one rendered edge.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is the /graph response body. Both slices are non-nil so they
// encode as [] rather than null.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Service builds Graphs from a TripleSource.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	source TripleSource
	opts   Options
}

// NewService creates a Service, filling zero Options fields with defaults.
func NewService(source TripleSource, opts Options) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("graphview: triple source must not be nil")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.CodePlaceholder == "" {
		opts.CodePlaceholder = DefaultCodePlaceholder
	}
	if opts.ExplanationPlaceholder == "" {
		opts.ExplanationPlaceholder = DefaultExplanationPlaceholder
	}
	return &Service{source: source, opts: opts}, nil
}

// Graph reads up to the configured number of triples and returns the
// deduplicated node list and one edge per triple.
//
// Outputs:
//   - *Graph: Nodes in first-seen order, edges in stream order.
//   - error: Any error from the source, wrapped.
func (s *Service) Graph(ctx context.Context) (*Graph, error) {
	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	seen := make(map[string]struct{})

	addNode := func(n graphstore.Node) {
		if _, ok := seen[n.ID]; ok {
			return
		}
		seen[n.ID] = struct{}{}
		g.Nodes = append(g.Nodes, s.viewNode(n))
	}

	err := s.source.StreamTriples(ctx, s.opts.Limit, func(t graphstore.Triple) error {
		addNode(t.Source)
		addNode(t.Target)
		g.Edges = append(g.Edges, Edge{
			ID:     t.Rel.ID,
			Source: t.Source.ID,
			Target: t.Target.ID,
			Label:  t.Rel.Type,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	return g, nil
}

func (s *Service) viewNode(n graphstore.Node) Node {
	kind := KindFunction
	if n.HasLabel(graphstore.LabelFile) {
		kind = KindFile
	}
	label, _ := n.StringProp(graphstore.PropName)
	code, ok := n.StringProp(graphstore.PropCode)
	if !ok {
		code = s.opts.CodePlaceholder
	}
	explanation, ok := n.StringProp(graphstore.PropExplanation)
	if !ok {
		explanation = s.opts.ExplanationPlaceholder
	}
	return Node{
		ID:   n.ID,
		Type: "default",
		Data: NodeData{
			Label:       label,
			Code:        code,
			Explanation: explanation,
			Kind:        kind,
		},
	}
}
