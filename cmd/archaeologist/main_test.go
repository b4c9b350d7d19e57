// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/archive"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/config"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphview"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// badgerEnv points the commands at an on-disk Badger graph with no
// language model key.
func badgerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ARCHAEOLOGIST_GRAPH_BACKEND", "badger")
	t.Setenv("ARCHAEOLOGIST_BADGER_PATH", filepath.Join(t.TempDir(), "graph"))
	t.Setenv("ARCHAEOLOGIST_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ARCHAEOLOGIST_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "ingest", "graph", "check", "watch"})
	for _, flag := range []string{"config", "env-file", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestIngestThenGraph(t *testing.T) {
	badgerEnv(t)
	src := filepath.Join(t.TempDir(), "legacy.py")
	require.NoError(t, os.WriteFile(src, []byte("def load(p):\n    return p\n\ndef save(p):\n    pass\n"), 0o644))

	out, err := execute(t, "ingest", src)
	require.NoError(t, err, out)
	assert.Contains(t, out, "legacy.py")
	assert.Contains(t, out, "load")
	assert.Contains(t, out, "save")

	out, err = execute(t, "graph", "--json")
	require.NoError(t, err, out)

	var g graphview.Graph
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)
	for _, n := range g.Nodes {
		if n.Data.Kind == graphview.KindFunction {
			assert.Equal(t, ingest.DefaultFailurePlaceholder, n.Data.Explanation)
		}
	}
}

func TestIngest_MissingFileFails(t *testing.T) {
	badgerEnv(t)
	_, err := execute(t, "ingest", filepath.Join(t.TempDir(), "nope.py"))
	assert.ErrorContains(t, err, "1 of 1 files failed")
}

func TestIngest_RequiresArgs(t *testing.T) {
	_, err := execute(t, "ingest")
	assert.Error(t, err)
}

type replyClient struct {
	reply string
	err   error
}

func (c replyClient) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return c.reply, c.err
}
func (replyClient) Provider() string { return "fake" }
func (replyClient) Model() string    { return "fake-1" }

func TestCheckModel(t *testing.T) {
	reply, err := checkModel(context.Background(), replyClient{reply: " Systems Functional.\n"})
	require.NoError(t, err)
	assert.Equal(t, "Systems Functional.", reply)

	_, err = checkModel(context.Background(), replyClient{reply: "hello"})
	assert.ErrorContains(t, err, "unexpected reply")

	_, err = checkModel(context.Background(), replyClient{err: errors.New("status 503")})
	assert.ErrorContains(t, err, "503")
}

func TestCheckCmd_ReportsUnavailableModel(t *testing.T) {
	badgerEnv(t)
	out, err := execute(t, "check")
	assert.ErrorContains(t, err, "connectivity check failed")
	assert.Contains(t, out, "graph store badger")
}

func TestArchiveConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	t.Setenv("ARCHAEOLOGIST_ARCHIVE_BACKEND", "local")
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	ac, err := archiveConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, archive.BackendLocal, ac.Backend)
	assert.Equal(t, "temp_uploads", ac.Dir)
	assert.Empty(t, ac.AccessKey, "keys revealed only for s3")

	t.Setenv("ARCHAEOLOGIST_ARCHIVE_BACKEND", "s3")
	t.Setenv("ARCHAEOLOGIST_ARCHIVE_BUCKET", "uploads")
	cfg, err = config.Load(config.LoadOptions{})
	require.NoError(t, err)
	ac, err = archiveConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "uploads", ac.Bucket)
	assert.Equal(t, "AKIDEXAMPLE", ac.AccessKey)
	assert.Equal(t, "secret", ac.SecretKey)
}

func TestRenderGraph(t *testing.T) {
	g := &graphview.Graph{
		Nodes: []graphview.Node{
			{ID: "file:a.py", Data: graphview.NodeData{Label: "a.py", Kind: graphview.KindFile}},
			{ID: "function:f", Data: graphview.NodeData{Label: "f", Explanation: "Does f.", Kind: graphview.KindFunction}},
		},
		Edges: []graphview.Edge{{ID: "e", Source: "file:a.py", Target: "function:f", Label: "DEFINES"}},
	}
	var buf bytes.Buffer
	renderGraph(&buf, g, true)
	assert.Contains(t, buf.String(), "2 nodes, 1 edges")
	assert.Contains(t, buf.String(), "a.py")
	assert.Contains(t, buf.String(), "Does f.")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, &ingest.Summary{
		Filename:           "a.py",
		Language:           "Python",
		Functions:          []ingest.FunctionSummary{{Name: "f", StartLine: 0, EndLine: 2, Explained: false}},
		FailedExplanations: 1,
	})
	assert.Contains(t, buf.String(), "lines 1-3")
	assert.Contains(t, buf.String(), "1 explanation(s) stored as placeholder")
}
