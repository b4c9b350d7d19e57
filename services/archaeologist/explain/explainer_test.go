// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

type recordingClient struct {
	text    string
	err     error
	prompts []string
	params  []llm.GenerationParams
}

func (c *recordingClient) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	c.prompts = append(c.prompts, prompt)
	c.params = append(c.params, params)
	return c.text, c.err
}

func (c *recordingClient) Provider() string { return "fake" }
func (c *recordingClient) Model() string    { return "fake-1" }

func TestExplain_Success(t *testing.T) {
	client := &recordingClient{text: "  Loads the configuration file from disk.\n"}
	result := NewExplainer(client, nil).Explain(context.Background(), "def load(): pass", "Python")

	assert.True(t, result.OK())
	assert.Equal(t, "Loads the configuration file from disk.", result.Text)
	assert.Equal(t, []string{"Explain this Python function in one specific sentence:\n\ndef load(): pass"}, client.prompts)
}

func TestExplain_Failures(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		client := &recordingClient{err: errors.New("gemini: API returned status 429: quota")}
		result := NewExplainer(client, nil).Explain(context.Background(), "def f(): pass", "Python")
		assert.False(t, result.OK())
		assert.Equal(t, "Analysis failed.", result.Or("Analysis failed."))
	})

	t.Run("blank answer", func(t *testing.T) {
		client := &recordingClient{text: " \n\t"}
		result := NewExplainer(client, nil).Explain(context.Background(), "def f(): pass", "Python")
		assert.ErrorIs(t, result.Err, llm.ErrEmptyResponse)
	})
}

func TestPrompt_DefaultsToPython(t *testing.T) {
	assert.Equal(t, "Explain this Python function in one specific sentence:\n\nx", Prompt("", "x"))
	assert.Equal(t, "Explain this Go function in one specific sentence:\n\nfunc f() {}", Prompt("Go", "func f() {}"))
}

func TestExplain_SendsConfiguredParams(t *testing.T) {
	client := &recordingClient{text: "Adds numbers."}
	params := llm.GenerationParams{Temperature: llm.Float32(0.1), MaxTokens: llm.Int(128)}

	NewExplainer(client, nil, WithParams(params)).Explain(context.Background(), "def add(a, b): pass", "Python")
	require.Len(t, client.params, 1)
	assert.Equal(t, params, client.params[0])

	NewExplainer(client, nil).Explain(context.Background(), "def add(a, b): pass", "Python")
	assert.Equal(t, llm.GenerationParams{}, client.params[1], "provider defaults without options")
}
