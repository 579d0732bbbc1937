// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Config holds the chat-completion backend settings.
type Config struct {
	// APIKey authenticates against the backend. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string

	// BaseURL overrides the endpoint, e.g. for a local inference server.
	BaseURL string

	// Model names the chat model.
	Model string

	// RequestsPerSecond throttles outbound calls. Non-positive disables
	// throttling.
	RequestsPerSecond float64

	// Temperature for generation. Zero keeps the backend default.
	Temperature float32
}

// OpenAIClient implements all collaborator roles over a chat-completion API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	temp    float32
}

// NewOpenAIClient creates the chat-completion collaborator backend.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("collab: no API key configured and OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("No collaborator model configured, defaulting", "model", model)
	}
	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	slog.Info("Initializing collaborator backend", "model", model, "base_url", oc.BaseURL)
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		limiter: limiter,
		temp:    cfg.Temperature,
	}, nil
}

// complete sends one system+user exchange and returns the text reply.
func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("collab: rate limit wait: %w", err)
		}
	}
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if c.temp != 0 {
		req.Temperature = c.temp
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Collaborator API call failed", "error", err)
		return "", fmt.Errorf("collab: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("collab: backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeJSON strips markdown fences the backends like to wrap JSON in, then
// unmarshals into out.
func decodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), out); err != nil {
		return fmt.Errorf("collab: decoding reply: %w", err)
	}
	return nil
}

// BreadthQuestions implements QuestionGenerator.
func (c *OpenAIClient) BreadthQuestions(ctx context.Context, profile *dataset.Profile, n int, saturated []string) ([]Candidate, error) {
	user := breadthPrompt(profile, n, saturated)
	reply, err := c.complete(ctx, questionSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Questions []Candidate `json:"questions"`
	}
	if err := decodeJSON(reply, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Questions, nil
}

// DepthQuestions implements QuestionGenerator.
func (c *OpenAIClient) DepthQuestions(ctx context.Context, parent research.Question, result *research.Table, n int) ([]Candidate, error) {
	user := depthPrompt(parent, result, n)
	reply, err := c.complete(ctx, questionSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Questions []Candidate `json:"questions"`
	}
	if err := decodeJSON(reply, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Questions, nil
}

// ReviseQuestion implements QuestionGenerator.
func (c *OpenAIClient) ReviseQuestion(ctx context.Context, profile *dataset.Profile, rejected Candidate, reason string) (Candidate, error) {
	reply, err := c.complete(ctx, questionSystemPrompt, revisePrompt(profile, rejected, reason))
	if err != nil {
		return Candidate{}, err
	}
	var wrapper struct {
		Question Candidate `json:"question"`
	}
	if err := decodeJSON(reply, &wrapper); err != nil {
		return Candidate{}, err
	}
	return wrapper.Question, nil
}

// GeneratePlan implements PlanGenerator. The reply is returned raw; parsing
// and checking belong to the transform executor.
func (c *OpenAIClient) GeneratePlan(ctx context.Context, q research.Question, profile *dataset.Profile, feedback []string) (string, error) {
	return c.complete(ctx, planSystemPrompt, planPrompt(q, profile, feedback))
}

// SpecifyChart implements ChartSpecifier.
func (c *OpenAIClient) SpecifyChart(ctx context.Context, q research.Question, table *research.Table) (research.ChartSpec, error) {
	reply, err := c.complete(ctx, chartSystemPrompt, chartPrompt(q, table))
	if err != nil {
		return nil, err
	}
	var spec json.RawMessage
	if err := decodeJSON(reply, &spec); err != nil {
		return nil, err
	}
	return research.ChartSpec(spec), nil
}

// Narrate implements Narrator.
func (c *OpenAIClient) Narrate(ctx context.Context, q research.Question, table *research.Table) (research.Narrative, error) {
	reply, err := c.complete(ctx, narrateSystemPrompt, narratePrompt(q, table))
	if err != nil {
		return research.Narrative{}, err
	}
	var n research.Narrative
	if err := decodeJSON(reply, &n); err != nil {
		return research.Narrative{}, err
	}
	if n.Title == "" || n.Text == "" {
		return research.Narrative{}, fmt.Errorf("collab: narrative missing title or text")
	}
	return n, nil
}

// FrameReport implements Narrator.
func (c *OpenAIClient) FrameReport(ctx context.Context, profile *dataset.Profile, findings []research.Finding) (ReportFrame, error) {
	reply, err := c.complete(ctx, narrateSystemPrompt, framePrompt(profile, findings))
	if err != nil {
		return ReportFrame{}, err
	}
	var f ReportFrame
	if err := decodeJSON(reply, &f); err != nil {
		return ReportFrame{}, err
	}
	return f, nil
}

// Roles returns the client wired into every collaborator slot.
func (c *OpenAIClient) Roles() Collaborators {
	return Collaborators{Questions: c, Plans: c, Charts: c, Narrator: c}
}
