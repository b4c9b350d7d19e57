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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce = watcher.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Re-ingest source files under DIR whenever they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			out := cmd.OutOrStdout()
			w, err := watcher.New(args[0], a.pipeline,
				watcher.WithDebounce(debounce),
				watcher.WithLogger(logger),
				watcher.WithOnIngested(func(path string, s *ingest.Summary, err error) {
					if err != nil {
						fmt.Fprintln(out, statusLine(path, err))
						return
					}
					renderSummary(out, s)
				}),
			)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is ingested")
	return cmd
}
