// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
)

// runProfileCommand profiles a dataset and prints the column summary.
func runProfileCommand(cmd *cobra.Command, args []string) {
	ds, err := dataset.Load(args[0])
	if err != nil {
		log.Fatalf("Error loading dataset: %v", err)
	}
	profile := dataset.BuildProfile(ds)

	fmt.Printf("%s: %d rows, %d columns\n\n", args[0], profile.RowCount, len(profile.Columns))
	for _, col := range profile.Columns {
		fmt.Printf("  %-24s %-12s distinct=%-6d missing=%.1f%%",
			col.Name, col.Type, col.Cardinality, col.MissingRate*100)
		if col.Stats != nil {
			fmt.Printf("  min=%.4g max=%.4g mean=%.4g", col.Stats.Min, col.Stats.Max, col.Stats.Mean)
		}
		fmt.Println()
		if len(col.SampleValues) > 0 {
			fmt.Printf("      e.g. %s\n", strings.Join(col.SampleValues, ", "))
		}
	}
}
