// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collab

import (
	"fmt"
	"strings"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// previewRows caps how many table rows a prompt carries.
const previewRows = 15

const questionSystemPrompt = `You are a data research planner. You propose sharp, answerable
analytical questions about tabular datasets. Reply with JSON only, no prose, shaped as
{"questions": [{"text": ..., "category": ..., "source_columns": [...], "visualization": ...}]}.
Visualization must be one of: scatter, bubble, line, area, box, violin, histogram, heatmap,
stacked_bar, stacked_area, wordcloud.`

const planSystemPrompt = `You are a data transformation planner. You answer a research question
by composing a JSON plan over these primitives, applied in order to the declared columns:
  {"op":"filter","column":C,"compare":"eq|ne|gt|ge|lt|le|contains|in|notnull","value":V}
  {"op":"derive","name":N,"left":C1,"operator":"add|sub|mul|div","right":C2}
  {"op":"group","by":[C...],"aggregate":[{"column":C,"func":"count|sum|mean|median|min|max","as":N}]}
  {"op":"bin","column":C,"width":W,"as":N}
  {"op":"pivot","index":C1,"pivot":C2,"value_column":C3,"pivot_func":F}
  {"op":"sort","column":C,"desc":true|false}
  {"op":"limit","n":N}
Reply with JSON only: {"steps": [...]}. Use only the columns the question declares.`

const chartSystemPrompt = `You are a visualization designer. Given a result table and a target
chart family, reply with a single Vega-Lite JSON specification and nothing else.`

const narrateSystemPrompt = `You are a research writer. You write concise, factual prose about
computed results. Reply with JSON only in the exact shape requested.`

func breadthPrompt(profile *dataset.Profile, n int, saturated []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset profile (%d rows):\n%s\n", profile.RowCount, renderProfile(profile))
	if len(saturated) > 0 {
		fmt.Fprintf(&b, "\nThese columns are already heavily used, avoid them: %s\n",
			strings.Join(saturated, ", "))
	}
	fmt.Fprintf(&b, "\nPropose %d diverse research questions covering as many distinct columns "+
		"and analytical themes as possible. Each question names the columns it needs and the "+
		"best-fitting visualization.", n)
	return b.String()
}

func depthPrompt(parent research.Question, result *research.Table, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "An earlier question was answered.\nQuestion: %s\nCategory: %s\nColumns: %s\n",
		parent.Text, parent.Category, strings.Join(parent.SourceColumns, ", "))
	fmt.Fprintf(&b, "\nIts result:\n%s\n", renderTable(result))
	fmt.Fprintf(&b, "\nPropose %d follow-up questions that dig into what this result reveals. "+
		"Each follow-up must use a different column combination and a different visualization "+
		"than the original question.", n)
	return b.String()
}

func revisePrompt(profile *dataset.Profile, rejected Candidate, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset profile (%d rows):\n%s\n", profile.RowCount, renderProfile(profile))
	fmt.Fprintf(&b, "\nThis proposed question was rejected:\n  Question: %s\n  Category: %s\n"+
		"  Columns: %s\n  Visualization: %s\n  Rejection: %s\n",
		rejected.Text, rejected.Category, strings.Join(rejected.SourceColumns, ", "),
		rejected.Visualization, reason)
	b.WriteString("\nPropose one replacement question that avoids the rejection reason while " +
		"keeping the same analytical intent. Reply as {\"question\": {\"text\": ..., " +
		"\"category\": ..., \"source_columns\": [...], \"visualization\": ...}}.")
	return b.String()
}

func planPrompt(q research.Question, profile *dataset.Profile, feedback []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nDeclared columns:\n", q.Text)
	for _, col := range q.SourceColumns {
		if d, ok := profile.Column(col); ok {
			fmt.Fprintf(&b, "  - %s (%s, %d distinct, %.0f%% missing)\n",
				d.Name, d.Type, d.Cardinality, d.MissingRate*100)
		} else {
			fmt.Fprintf(&b, "  - %s\n", col)
		}
	}
	fmt.Fprintf(&b, "Target visualization: %s\n", q.Visualization)
	fmt.Fprintf(&b, "\nWrite a plan whose result table suits that visualization.")
	if len(feedback) > 0 {
		b.WriteString("\n\nEarlier attempts failed. Fix these problems:\n")
		for i, f := range feedback {
			fmt.Fprintf(&b, "  attempt %d: %s\n", i+1, f)
		}
	}
	return b.String()
}

func chartPrompt(q research.Question, table *research.Table) string {
	return fmt.Sprintf("Question: %s\nChart family: %s\n\nResult table:\n%s",
		q.Text, q.Visualization, renderTable(table))
}

func narratePrompt(q research.Question, table *research.Table) string {
	return fmt.Sprintf("Question: %s\n\nComputed result:\n%s\n\n"+
		"Write a short section about this finding. Reply as "+
		`{"title": ..., "text": ...}. The text is two to four sentences, grounded `+
		"strictly in the numbers shown.", q.Text, renderTable(table))
}

func framePrompt(profile *dataset.Profile, findings []research.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A report was produced over a dataset of %d rows with columns: %s.\n",
		profile.RowCount, strings.Join(profile.ColumnNames(), ", "))
	b.WriteString("Its findings:\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "  %d. %s: %s\n", i+1, f.Narrative.Title, f.Question.Text)
	}
	b.WriteString("\nWrite the report framing. Reply as " +
		`{"title": ..., "introduction": ..., "conclusion": ...}. ` +
		"The introduction previews the findings, the conclusion synthesizes them.")
	return b.String()
}

// renderProfile renders the column descriptors compactly for prompts.
func renderProfile(profile *dataset.Profile) string {
	var b strings.Builder
	for _, d := range profile.Columns {
		fmt.Fprintf(&b, "  - %s: %s, %d distinct, %.0f%% missing",
			d.Name, d.Type, d.Cardinality, d.MissingRate*100)
		if d.Stats != nil {
			fmt.Fprintf(&b, ", range %s to %s",
				research.FormatNum(d.Stats.Min), research.FormatNum(d.Stats.Max))
		}
		if len(d.SampleValues) > 0 {
			fmt.Fprintf(&b, ", e.g. %s", strings.Join(d.SampleValues, " | "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// renderTable renders a result as pipe-separated rows, truncated for prompts.
func renderTable(table *research.Table) string {
	if table == nil || table.Empty() {
		return "(empty)"
	}
	var b strings.Builder
	b.WriteString(strings.Join(table.Columns, " | "))
	b.WriteByte('\n')
	n := len(table.Rows)
	shown := n
	if shown > previewRows {
		shown = previewRows
	}
	for _, row := range table.Rows[:shown] {
		cells := make([]string, len(row))
		for i, v := range row {
			switch {
			case v.Missing:
				cells[i] = ""
			case v.Numeric:
				cells[i] = research.FormatNum(v.Num)
			default:
				cells[i] = v.Str
			}
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
	if n > shown {
		fmt.Fprintf(&b, "... %d more rows\n", n-shown)
	}
	return b.String()
}
