// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package collab defines the generative collaborator roles the research
// pipeline consumes and a chat-completion backed implementation of them.
//
// The pipeline never talks to a model directly. Each stage depends on one of
// the narrow interfaces here, so tests substitute scripted collaborators and
// the engine stays deterministic under test.
package collab

import (
	"context"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Candidate is a proposed research question, prior to quota screening.
type Candidate struct {
	// Text is the question in natural language.
	Text string `json:"text"`

	// Category is the analytical theme the question belongs to.
	Category string `json:"category"`

	// SourceColumns are the dataset columns the question draws on.
	SourceColumns []string `json:"source_columns"`

	// Visualization is the proposed chart family.
	Visualization research.VisualizationType `json:"visualization"`
}

// QuestionGenerator proposes research questions over a dataset profile.
type QuestionGenerator interface {
	// BreadthQuestions proposes up to n first-pass questions. Saturated
	// columns have hit their usage cap and should be avoided.
	BreadthQuestions(ctx context.Context, profile *dataset.Profile, n int, saturated []string) ([]Candidate, error)

	// DepthQuestions proposes up to n follow-ups to an answered question,
	// informed by its computed result.
	DepthQuestions(ctx context.Context, parent research.Question, result *research.Table, n int) ([]Candidate, error)

	// ReviseQuestion proposes a replacement for a candidate the planner
	// rejected, given the rejection reason.
	ReviseQuestion(ctx context.Context, profile *dataset.Profile, rejected Candidate, reason string) (Candidate, error)
}

// PlanGenerator produces transformation plans that answer a question.
type PlanGenerator interface {
	// GeneratePlan returns the raw plan document for the question.
	// Feedback carries the failure messages of earlier attempts, newest
	// last, so the collaborator can correct itself.
	GeneratePlan(ctx context.Context, q research.Question, profile *dataset.Profile, feedback []string) (string, error)
}

// ChartSpecifier turns a validated result table into a chart specification.
type ChartSpecifier interface {
	SpecifyChart(ctx context.Context, q research.Question, table *research.Table) (research.ChartSpec, error)
}

// ReportFrame is the report-level prose produced around the findings.
type ReportFrame struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
	Conclusion   string `json:"conclusion"`
}

// Narrator writes the prose of the report.
type Narrator interface {
	// Narrate produces the titled narrative for one finding.
	Narrate(ctx context.Context, q research.Question, table *research.Table) (research.Narrative, error)

	// FrameReport produces the title, introduction, and conclusion once
	// the curated findings are known.
	FrameReport(ctx context.Context, profile *dataset.Profile, findings []research.Finding) (ReportFrame, error)
}

// Collaborators bundles the four roles the pipeline wires together. A single
// backend usually implements all of them.
type Collaborators struct {
	Questions QuestionGenerator
	Plans     PlanGenerator
	Charts    ChartSpecifier
	Narrator  Narrator
}
