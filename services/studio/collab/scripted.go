// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Scripted is a deterministic collaborator for tests and offline runs. Every
// role replays pre-loaded responses instead of calling a model.
//
// # Thread Safety
//
// Safe for concurrent use. The compute engine calls it from many workers.
type Scripted struct {
	mu sync.Mutex

	// BreadthBatches are successive BreadthQuestions replies, consumed in
	// order. The last batch repeats once exhausted.
	BreadthBatches [][]Candidate

	// DepthByParent maps a parent question ID to its follow-up reply.
	DepthByParent map[string][]Candidate

	// Revisions maps a rejected candidate's text to its successive
	// replacements, consumed in order. ReviseQuestion errors once a
	// candidate's replacements run out.
	Revisions map[string][]Candidate

	// ReviseReasons records the rejection reason passed to each
	// ReviseQuestion call, keyed by the rejected candidate's text.
	ReviseReasons map[string][]string

	// PlansByQuestion maps a question ID to its successive plan documents,
	// one per attempt. The last document repeats once exhausted.
	PlansByQuestion map[string][]string

	// DefaultPlan answers GeneratePlan for questions with no scripted
	// entry, which is how end-to-end tests script runs whose question IDs
	// are assigned during planning.
	DefaultPlan string

	// BreadthErr, when set, fails every BreadthQuestions call.
	BreadthErr error

	// PlanErr, when set, fails every GeneratePlan call.
	PlanErr error

	// ChartErr, when set, fails every SpecifyChart call.
	ChartErr error

	breadthCalls int
	planCalls    map[string]int

	// Feedback records the feedback passed to each GeneratePlan call,
	// keyed by question ID, for assertions on the retry loop.
	Feedback map[string][][]string
}

var _ QuestionGenerator = (*Scripted)(nil)
var _ PlanGenerator = (*Scripted)(nil)
var _ ChartSpecifier = (*Scripted)(nil)
var _ Narrator = (*Scripted)(nil)

// Roles returns the scripted collaborator wired into every slot.
func (s *Scripted) Roles() Collaborators {
	return Collaborators{Questions: s, Plans: s, Charts: s, Narrator: s}
}

// BreadthQuestions implements QuestionGenerator.
func (s *Scripted) BreadthQuestions(_ context.Context, _ *dataset.Profile, _ int, _ []string) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BreadthErr != nil {
		return nil, s.BreadthErr
	}
	if len(s.BreadthBatches) == 0 {
		return nil, nil
	}
	i := s.breadthCalls
	if i >= len(s.BreadthBatches) {
		i = len(s.BreadthBatches) - 1
	}
	s.breadthCalls++
	return s.BreadthBatches[i], nil
}

// DepthQuestions implements QuestionGenerator.
func (s *Scripted) DepthQuestions(_ context.Context, parent research.Question, _ *research.Table, _ int) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DepthByParent[parent.ID], nil
}

// ReviseQuestion implements QuestionGenerator.
func (s *Scripted) ReviseQuestion(_ context.Context, _ *dataset.Profile, rejected Candidate, reason string) (Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReviseReasons == nil {
		s.ReviseReasons = make(map[string][]string)
	}
	s.ReviseReasons[rejected.Text] = append(s.ReviseReasons[rejected.Text], reason)
	replacements := s.Revisions[rejected.Text]
	if len(replacements) == 0 {
		return Candidate{}, fmt.Errorf("collab: no scripted revision for %q", rejected.Text)
	}
	s.Revisions[rejected.Text] = replacements[1:]
	return replacements[0], nil
}

// GeneratePlan implements PlanGenerator.
func (s *Scripted) GeneratePlan(_ context.Context, q research.Question, _ *dataset.Profile, feedback []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Feedback == nil {
		s.Feedback = make(map[string][][]string)
	}
	s.Feedback[q.ID] = append(s.Feedback[q.ID], append([]string{}, feedback...))
	if s.PlanErr != nil {
		return "", s.PlanErr
	}
	plans := s.PlansByQuestion[q.ID]
	if len(plans) == 0 {
		if s.DefaultPlan != "" {
			return s.DefaultPlan, nil
		}
		return "", fmt.Errorf("collab: no scripted plan for question %q", q.ID)
	}
	if s.planCalls == nil {
		s.planCalls = make(map[string]int)
	}
	i := s.planCalls[q.ID]
	if i >= len(plans) {
		i = len(plans) - 1
	}
	s.planCalls[q.ID]++
	return plans[i], nil
}

// SpecifyChart implements ChartSpecifier with a minimal fixed spec.
func (s *Scripted) SpecifyChart(_ context.Context, q research.Question, _ *research.Table) (research.ChartSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ChartErr != nil {
		return nil, s.ChartErr
	}
	return research.ChartSpec(fmt.Sprintf(`{"mark":%q}`, q.Visualization)), nil
}

// Narrate implements Narrator with prose derived from the question.
func (s *Scripted) Narrate(_ context.Context, q research.Question, table *research.Table) (research.Narrative, error) {
	return research.Narrative{
		Title: "On " + q.Text,
		Text:  fmt.Sprintf("The computed table has %d rows answering: %s", len(table.Rows), q.Text),
	}, nil
}

// FrameReport implements Narrator.
func (s *Scripted) FrameReport(_ context.Context, _ *dataset.Profile, findings []research.Finding) (ReportFrame, error) {
	return ReportFrame{
		Title:        "Dataset Research Report",
		Introduction: fmt.Sprintf("This report presents %d findings.", len(findings)),
		Conclusion:   "The findings above summarize the dataset's main patterns.",
	}, nil
}
