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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

const (
	checkPrompt   = "Say 'Systems Functional' if you can hear me."
	checkTimeout  = 30 * time.Second
	checkExpected = "systems functional"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the language model and graph store are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			reply, llmErr := checkModel(ctx, a.client)
			fmt.Fprintln(out, statusLine(fmt.Sprintf("model %s/%s", a.client.Provider(), a.client.Model()), llmErr))
			if llmErr == nil {
				fmt.Fprintf(out, "    %s\n", dimStyle.Render(reply))
			}

			storeErr := a.store.Ping(ctx)
			fmt.Fprintln(out, statusLine("graph store "+cfg.Graph.Backend, storeErr))

			if llmErr != nil || storeErr != nil {
				return fmt.Errorf("connectivity check failed")
			}
			return nil
		},
	}
}

// checkModel sends the self-test prompt and verifies the answer.
func checkModel(ctx context.Context, client llm.Client) (string, error) {
	reply, err := client.Generate(ctx, checkPrompt, llm.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("%s", llm.SafeLogString(err.Error()))
	}
	reply = strings.TrimSpace(reply)
	if !strings.Contains(strings.ToLower(reply), checkExpected) {
		return reply, fmt.Errorf("unexpected reply %q", reply)
	}
	return reply, nil
}
