// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

type LanternConfig struct {
	// Collaborator: the chat-completion backend settings.
	Collaborator CollaboratorConfig `yaml:"collaborator"`

	// Research: planning and computation tuning.
	Research ResearchConfig `yaml:"research"`

	// Cache: the stage store location.
	Cache CacheConfig `yaml:"cache"`

	// Server: the HTTP surface.
	Server ServerConfig `yaml:"server"`
}

type CollaboratorConfig struct {
	// Type can be "openai" or any OpenAI-compatible endpoint.
	Type    string `yaml:"type" validate:"required,oneof=openai compatible"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model   string `yaml:"model"`

	// RequestsPerSecond throttles collaborator calls.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

type ResearchConfig struct {
	TargetQuestions    int     `yaml:"target_questions" validate:"gt=0"`
	CoverageTarget     float64 `yaml:"coverage_target" validate:"gt=0,lte=1"`
	PlanningRetries    int     `yaml:"planning_retries" validate:"gte=0"`
	FollowUpsPerParent int     `yaml:"follow_ups_per_parent" validate:"gte=0"`
	MaxColumnUses      int     `yaml:"max_column_uses" validate:"gt=0"`
	MaxVizUses         int     `yaml:"max_visualization_uses" validate:"gt=0"`
	Workers            int     `yaml:"workers" validate:"gt=0"`
	MaxAttempts        int     `yaml:"max_attempts" validate:"gt=0"`
	TaskTimeoutSec     int     `yaml:"task_timeout_seconds" validate:"gt=0"`
	RunTimeoutSec      int     `yaml:"run_timeout_seconds" validate:"gt=0"`
	MaxFindings        int     `yaml:"max_findings" validate:"gt=0"`
}

type CacheConfig struct {
	// Enabled toggles stage caching.
	Enabled bool `yaml:"enabled"`

	// Path is the stage store directory.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

func DefaultConfig() LanternConfig {
	cachePath := "lantern-cache"
	if home, err := os.UserHomeDir(); err == nil {
		cachePath = filepath.Join(home, ".lantern", "cache")
	}
	return LanternConfig{
		Collaborator: CollaboratorConfig{
			Type:              "openai",
			Model:             "gpt-4o-mini",
			RequestsPerSecond: 2,
		},
		Research: ResearchConfig{
			TargetQuestions:    12,
			CoverageTarget:     0.8,
			PlanningRetries:    3,
			FollowUpsPerParent: 2,
			MaxColumnUses:      3,
			MaxVizUses:         2,
			Workers:            4,
			MaxAttempts:        3,
			TaskTimeoutSec:     30,
			RunTimeoutSec:      600,
			MaxFindings:        8,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    cachePath,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}
