// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	outputPath   string
	outputFormat string // report output format (markdown/json)
	runID        string // resume an earlier run's cache
	noCache      bool
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "lantern",
		Short: "A cli to research tabular datasets into narrated reports",
		Long: `Lantern profiles a CSV dataset, plans research questions with a
generative collaborator, computes the answers with declarative
transformations, and assembles the findings into a report.`,
	}

	// --- Research ---
	reportCmd = &cobra.Command{
		Use:   "report [dataset.csv]",
		Short: "Run a full research pass over a dataset and emit the report",
		Args:  cobra.ExactArgs(1),
		Run:   runReportCommand, // Defined in cmd_report.go
	}

	// --- Profiling ---
	profileCmd = &cobra.Command{
		Use:   "profile [dataset.csv]",
		Short: "Profile a dataset's columns without running any research",
		Args:  cobra.ExactArgs(1),
		Run:   runProfileCommand, // Defined in cmd_profile.go
	}

	// --- Serving ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve research runs over HTTP",
		Run:   runServeCommand, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	reportCmd.Flags().StringVar(&outputFormat, "format", "markdown", "Report format: markdown or json")
	reportCmd.Flags().StringVar(&runID, "run-id", "", "Reuse a run ID to resume from the stage cache")
	reportCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the stage cache for this run")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(serveCmd)
}
