// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/pipeline"
	"github.com/LanternAI/LanternStudio/services/studio/report"
)

// runReportCommand executes a full research run from the CLI.
func runReportCommand(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()
	slogger := logger.Slog()

	ds, err := dataset.Load(args[0])
	if err != nil {
		log.Fatalf("Error loading dataset: %v", err)
	}
	slogger.Info("Dataset loaded", "path", args[0], "rows", ds.RowCount())

	roles, err := newCollaborators()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	store, err := openStageCache(noCache)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	pipe := pipeline.New(roles, store, pipelineConfig(), slogger)
	var result *pipeline.Result
	if runID != "" {
		result, err = pipe.RunWithID(context.Background(), runID, ds)
	} else {
		result, err = pipe.Run(context.Background(), ds)
	}
	if err != nil {
		log.Fatalf("Research run failed: %v", err)
	}

	var rendered []byte
	switch outputFormat {
	case "json":
		rendered, err = json.MarshalIndent(result.Report, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding report: %v", err)
		}
	default:
		rendered = []byte(report.Markdown(result.Report))
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, rendered, 0644); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}
		slogger.Info("Report written", "path", outputPath, "run_id", result.RunID)
		return
	}
	fmt.Println(string(rendered))
}
