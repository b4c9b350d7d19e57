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
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "archaeologist.graphstore"

const (
	cypherMergeFile = `MERGE (f:File {name: $fname})`

	cypherMergeFunctionGlobal = `
MATCH (file:File {name: $fname})
MERGE (func:Function {name: $func_name})
ON CREATE SET func.code = $code, func.start_line = $start, func.explanation = $desc
MERGE (file)-[:DEFINES]->(func)`

	cypherMergeFunctionFile = `
MATCH (file:File {name: $fname})
MERGE (func:Function {name: $func_name, file: $fname})
ON CREATE SET func.code = $code, func.start_line = $start, func.explanation = $desc
MERGE (file)-[:DEFINES]->(func)`

	cypherTriples = `
MATCH (n)-[r]->(m)
RETURN n, r, m
LIMIT $limit`
)

// Neo4jConfig configures a Neo4jStore.
type Neo4jConfig struct {
	URI               string
	User              string
	Password          string
	Database          string
	Scope             Scope
	EnsureConstraints bool
}

// statement is one auto-commit Cypher statement.
type statement struct {
	cypher string
	params map[string]any
}

// runFunc executes one auto-commit statement and drains its result.
type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jStore implements Store on a Neo4j database.
//
// Description:
//
//	Every merge runs as its own auto-commit statement inside one session,
//	so a failure on the Nth function leaves the file node and the first
//	N-1 functions merged. Concurrent writers rely on MERGE together with
//	the uniqueness constraints created by EnsureSchema.
//
// Thread Safety: Safe for concurrent use. Sessions are per call.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	scope    Scope
	logger   *slog.Logger
}

// OpenNeo4j creates the driver and, when enabled, the schema constraints.
//
// Description:
//
//	The driver connects lazily, so an unreachable database does not stop
//	the process from starting; a failed constraint setup is logged and
//	readiness checks report the outage through Ping.
//
// Inputs:
//   - ctx: Context for the constraint setup.
//   - cfg: Connection settings. Empty User and Password select no auth.
//   - logger: Logger for warnings. Nil uses slog.Default().
//
// Outputs:
//   - *Neo4jStore: The store. Close it with Close.
//   - error: Non-nil if the URI is invalid.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}

	auth := neo4j.NoAuth()
	if cfg.User != "" || cfg.Password != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	store := &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		scope:    scope,
		logger:   logger,
	}

	if cfg.EnsureConstraints {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j constraint setup failed; continuing without constraints",
				slog.String("error", err.Error()))
		}
	}
	return store, nil
}

// schemaStatements returns the constraint statements for scope.
func schemaStatements(scope Scope) []string {
	fileConstraint := "CREATE CONSTRAINT archaeologist_file_name IF NOT EXISTS FOR (f:File) REQUIRE f.name IS UNIQUE"
	if scope == ScopeFile {
		return []string{
			fileConstraint,
			"CREATE CONSTRAINT archaeologist_function_file_name IF NOT EXISTS FOR (fn:Function) REQUIRE (fn.file, fn.name) IS UNIQUE",
		}
	}
	return []string{
		fileConstraint,
		"CREATE CONSTRAINT archaeologist_function_name IF NOT EXISTS FOR (fn:Function) REQUIRE fn.name IS UNIQUE",
	}
}

// EnsureSchema creates the uniqueness constraints MERGE relies on.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	for _, cypher := range schemaStatements(s.scope) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, cypher, nil)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("creating constraint: %w", err)
		}
	}
	return nil
}

// upsertStatements builds the statements UpsertFile runs, in order.
func upsertStatements(filename string, functions []FunctionRecord, scope Scope) []statement {
	funcCypher := cypherMergeFunctionGlobal
	if scope == ScopeFile {
		funcCypher = cypherMergeFunctionFile
	}

	stmts := make([]statement, 0, len(functions)+1)
	stmts = append(stmts, statement{cypher: cypherMergeFile, params: map[string]any{"fname": filename}})
	for _, fn := range functions {
		stmts = append(stmts, statement{
			cypher: funcCypher,
			params: map[string]any{
				"fname":     filename,
				"func_name": fn.Name,
				"code":      fn.Code,
				"start":     int64(fn.StartLine),
				"desc":      fn.Explanation,
			},
		})
	}
	return stmts
}

// runStatements executes stmts in order and stops at the first failure.
func runStatements(ctx context.Context, run runFunc, stmts []statement) error {
	for i, stmt := range stmts {
		if err := run(ctx, stmt.cypher, stmt.params); err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(stmts), err)
		}
	}
	return nil
}

// UpsertFile implements Store.
func (s *Neo4jStore) UpsertFile(ctx context.Context, filename string, functions []FunctionRecord) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphstore.Neo4jStore.UpsertFile",
		trace.WithAttributes(
			attribute.String("file", filename),
			attribute.Int("function_count", len(functions)),
		),
	)
	defer span.End()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	run := func(ctx context.Context, cypher string, params map[string]any) error {
		result, err := session.Run(ctx, cypher, params)
		if err != nil {
			return err
		}
		_, err = result.Consume(ctx)
		return err
	}

	if err := runStatements(ctx, run, upsertStatements(filename, functions, s.scope)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("neo4j upsert %s: %w", filename, err)
	}
	return nil
}

// StreamTriples implements Store.
func (s *Neo4jStore) StreamTriples(ctx context.Context, limit int, fn func(Triple) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphstore.Neo4jStore.StreamTriples",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypherTriples, map[string]any{"limit": int64(limit)})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("neo4j triple query: %w", err)
	}

	for result.Next(ctx) {
		triple, err := tripleFromRecord(result.Record())
		if err != nil {
			return err
		}
		if err := fn(triple); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
	if err := result.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("neo4j triple query: %w", err)
	}
	return nil
}

// tripleFromRecord converts an (n, r, m) record.
func tripleFromRecord(record *neo4j.Record) (Triple, error) {
	if record == nil {
		return Triple{}, fmt.Errorf("neo4j: nil record")
	}
	n, ok := record.Get("n")
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: record missing n")
	}
	r, ok := record.Get("r")
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: record missing r")
	}
	m, ok := record.Get("m")
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: record missing m")
	}

	source, ok := n.(neo4j.Node)
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: n is %T, want node", n)
	}
	rel, ok := r.(neo4j.Relationship)
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: r is %T, want relationship", r)
	}
	target, ok := m.(neo4j.Node)
	if !ok {
		return Triple{}, fmt.Errorf("neo4j: m is %T, want node", m)
	}

	return Triple{
		Source: Node{ID: source.ElementId, Labels: source.Labels, Props: source.Props},
		Rel: Relationship{
			ID:      rel.ElementId,
			Type:    rel.Type,
			StartID: rel.StartElementId,
			EndID:   rel.EndElementId,
		},
		Target: Node{ID: target.ElementId, Labels: target.Labels, Props: target.Props},
	}, nil
}

// Ping implements Store.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close implements Store.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
