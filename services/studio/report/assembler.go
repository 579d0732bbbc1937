// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report assembles arranged sections into the final report and
// renders it.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// ErrEmptyReport means no finding survived to assembly. This is the one
// pipeline condition treated as fatal for the whole run.
var ErrEmptyReport = errors.New("report: no findings to assemble")

// Assemble builds the final report around the arranged sections.
//
// # Description
//
// The narrator writes the report frame (title, introduction, conclusion)
// from the curated findings. An empty section list is ErrEmptyReport; a
// frame missing any of its three parts is an assembly error, since a report
// without framing prose is not deliverable.
//
// # Inputs
//   - ctx: cancellation for the narrator call.
//   - narrator: writes the framing prose.
//   - profile: the dataset profile, for framing context.
//   - sections: arranged sections, already positioned.
//
// # Outputs
//   - *research.Report: the complete report.
//   - error: ErrEmptyReport, or a wrapped narrator/validation failure.
func Assemble(ctx context.Context, narrator collab.Narrator, profile *dataset.Profile, sections []research.Section) (*research.Report, error) {
	if len(sections) == 0 {
		return nil, ErrEmptyReport
	}
	if ctx == nil {
		ctx = context.Background()
	}
	findings := make([]research.Finding, len(sections))
	for i, s := range sections {
		findings[i] = s.Finding
	}
	frame, err := narrator.FrameReport(ctx, profile, findings)
	if err != nil {
		return nil, fmt.Errorf("report: framing failed: %w", err)
	}
	if frame.Title == "" {
		return nil, errors.New("report: frame is missing a title")
	}
	if frame.Introduction == "" {
		return nil, errors.New("report: frame is missing an introduction")
	}
	if frame.Conclusion == "" {
		return nil, errors.New("report: frame is missing a conclusion")
	}
	return &research.Report{
		Title:        frame.Title,
		Introduction: frame.Introduction,
		Sections:     sections,
		Conclusion:   frame.Conclusion,
	}, nil
}

// Markdown renders the report as a Markdown document.
//
// Each section carries its narrative, its result table, and its chart
// specification in a fenced JSON block so downstream tooling can pick the
// charts back up.
func Markdown(r *research.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", r.Title, r.Introduction)
	for _, s := range r.Sections {
		f := s.Finding
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", f.Narrative.Title, f.Narrative.Text)
		if f.Table != nil && !f.Table.Empty() {
			b.WriteByte('\n')
			writeTable(&b, f.Table)
		}
		if len(f.Chart) > 0 {
			fmt.Fprintf(&b, "\n```json\n%s\n```\n", string(f.Chart))
		}
	}
	fmt.Fprintf(&b, "\n## Conclusion\n\n%s\n", r.Conclusion)
	return b.String()
}

func writeTable(b *strings.Builder, t *research.Table) {
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			if i < len(row) {
				cells[i] = cellString(row[i])
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func cellString(v research.Value) string {
	switch {
	case v.Missing:
		return ""
	case v.Numeric:
		return research.FormatNum(v.Num)
	default:
		return v.Str
	}
}
