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
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/graphview"
	"github.com/AleutianAI/CodeArchaeologist/services/archaeologist/ingest"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// renderSummary prints one ingested file with a line per function.
func renderSummary(w io.Writer, s *ingest.Summary) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(s.Filename),
		dimStyle.Render(fmt.Sprintf("(%s, %d functions, %s)", s.Language, s.FunctionCount(), s.Duration.Round(1e6))))
	for _, fn := range s.Functions {
		mark := okStyle.Render("✓")
		if !fn.Explained {
			mark = warnStyle.Render("!")
		}
		fmt.Fprintf(w, "  %s %-32s lines %d-%d\n", mark, fn.Name, fn.StartLine+1, fn.EndLine+1)
	}
	if s.FailedExplanations > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  %d explanation(s) stored as placeholder", s.FailedExplanations)))
	}
}

// renderGraph prints each file with the functions it defines.
func renderGraph(w io.Writer, g *graphview.Graph, verbose bool) {
	byID := make(map[string]graphview.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	var order []string
	children := map[string][]string{}
	for _, e := range g.Edges {
		if _, ok := children[e.Source]; !ok {
			order = append(order, e.Source)
		}
		children[e.Source] = append(children[e.Source], e.Target)
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d nodes, %d edges", len(g.Nodes), len(g.Edges))))
	for _, src := range order {
		fmt.Fprintln(w, titleStyle.Render(byID[src].Data.Label))
		for _, dst := range children[src] {
			n := byID[dst]
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("DEFINES"), n.Data.Label)
			if verbose {
				fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(n.Data.Explanation, "\n", " "))
			}
		}
	}
}

func statusLine(name string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: %s", errStyle.Render("✗"), name, err)
	}
	return fmt.Sprintf("%s %s", okStyle.Render("✓"), name)
}
