// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command archaeologist serves the Code Archaeologist API and offers
// command-line ingestion, graph inspection and connectivity checks.
package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// Persistent flag values.
var (
	configPath string
	envFile    string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archaeologist",
		Short: "Code Archaeologist: explain legacy code as a graph",
		Long: `Code Archaeologist extracts the top-level functions of uploaded source
files, asks a language model to explain each one, and stores the
File -DEFINES-> Function graph for visualization.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default .env if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newGraphCmd(),
		newCheckCmd(),
		newWatchCmd(),
	)
	return root
}

func main() {
	defer memguard.Purge()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		memguard.Purge()
		os.Exit(1)
	}
}
