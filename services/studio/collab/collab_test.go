// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

func TestDecodeJSONStripsFences(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, decodeJSON("```json\n{\"title\":\"hi\"}\n```", &out))
	require.Equal(t, "hi", out.Title)

	require.NoError(t, decodeJSON(`{"title":"plain"}`, &out))
	require.Equal(t, "plain", out.Title)

	require.Error(t, decodeJSON("not json", &out))
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient(Config{})
	require.Error(t, err)

	// A local endpoint needs no key.
	c, err := NewOpenAIClient(Config{BaseURL: "http://localhost:11434/v1", Model: "llama3"})
	require.NoError(t, err)
	require.NotNil(t, c.Roles().Plans)
}

func TestScriptedReplaysBatchesInOrder(t *testing.T) {
	s := &Scripted{
		BreadthBatches: [][]Candidate{
			{{Text: "first"}},
			{{Text: "second"}},
		},
	}
	ctx := context.Background()
	b1, err := s.BreadthQuestions(ctx, nil, 5, nil)
	require.NoError(t, err)
	require.Equal(t, "first", b1[0].Text)

	b2, err := s.BreadthQuestions(ctx, nil, 5, nil)
	require.NoError(t, err)
	require.Equal(t, "second", b2[0].Text)

	// The last batch repeats once exhausted.
	b3, err := s.BreadthQuestions(ctx, nil, 5, nil)
	require.NoError(t, err)
	require.Equal(t, "second", b3[0].Text)
}

func TestScriptedPlansAdvancePerAttempt(t *testing.T) {
	s := &Scripted{
		PlansByQuestion: map[string][]string{"q1": {"plan-a", "plan-b"}},
	}
	q := research.Question{ID: "q1"}
	ctx := context.Background()

	p, err := s.GeneratePlan(ctx, q, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "plan-a", p)

	p, err = s.GeneratePlan(ctx, q, nil, []string{"attempt 1 failed"})
	require.NoError(t, err)
	require.Equal(t, "plan-b", p)

	require.Len(t, s.Feedback["q1"], 2)
	require.Equal(t, []string{"attempt 1 failed"}, s.Feedback["q1"][1])
}

func TestPromptsNameColumnsAndFeedback(t *testing.T) {
	ds, err := dataset.New(
		[]string{"Year", "Citations"},
		[][]string{{"2019", "120"}, {"2020", "80"}},
	)
	require.NoError(t, err)
	profile := dataset.BuildProfile(ds)

	q := research.Question{
		Text:          "How do citations trend?",
		SourceColumns: []string{"Year", "Citations"},
		Visualization: research.VizLine,
	}
	prompt := planPrompt(q, profile, []string{"column access violation"})
	require.Contains(t, prompt, "Year")
	require.Contains(t, prompt, "Citations")
	require.Contains(t, prompt, "column access violation")

	breadth := breadthPrompt(profile, 5, []string{"Year"})
	require.Contains(t, breadth, "Year")

	revise := revisePrompt(profile, Candidate{
		Text:          "How do citations trend?",
		Category:      "trends",
		SourceColumns: []string{"Year", "Citations"},
		Visualization: research.VizLine,
	}, "column usage cap exceeded")
	require.Contains(t, revise, "How do citations trend?")
	require.Contains(t, revise, "column usage cap exceeded")
}

func TestScriptedReplaysRevisions(t *testing.T) {
	s := &Scripted{
		Revisions: map[string][]Candidate{
			"rejected": {{Text: "replacement", Category: "trends"}},
		},
	}
	rejected := Candidate{Text: "rejected", Category: "trends"}

	revised, err := s.ReviseQuestion(context.Background(), nil, rejected, "cap exceeded")
	require.NoError(t, err)
	require.Equal(t, "replacement", revised.Text)
	require.Equal(t, []string{"cap exceeded"}, s.ReviseReasons["rejected"])

	_, err = s.ReviseQuestion(context.Background(), nil, rejected, "still capped")
	require.Error(t, err, "scripted replacements are consumed in order")
	require.Len(t, s.ReviseReasons["rejected"], 2)
}
