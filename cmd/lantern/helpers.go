// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"time"

	"github.com/LanternAI/LanternStudio/cmd/lantern/config"
	"github.com/LanternAI/LanternStudio/pkg/logging"
	"github.com/LanternAI/LanternStudio/services/studio/cache"
	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/compute"
	"github.com/LanternAI/LanternStudio/services/studio/curate"
	"github.com/LanternAI/LanternStudio/services/studio/pipeline"
	"github.com/LanternAI/LanternStudio/services/studio/plan"
	"github.com/LanternAI/LanternStudio/services/studio/quota"
)

// newLogger builds the CLI logger honoring the --verbose flag.
func newLogger() *logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{Level: level, Service: "cli"})
}

// pipelineConfig maps the loaded YAML config onto pipeline settings.
func pipelineConfig() pipeline.Config {
	r := config.Global.Research
	return pipeline.Config{
		Quota: quota.Config{
			MaxColumnUses:        r.MaxColumnUses,
			MaxVisualizationUses: r.MaxVizUses,
		},
		Planner: plan.Config{
			TargetQuestions:    r.TargetQuestions,
			CoverageTarget:     r.CoverageTarget,
			MaxRounds:          r.MaxAttempts,
			MaxPlanningRetries: r.PlanningRetries,
			FollowUpsPerParent: r.FollowUpsPerParent,
		},
		Engine: compute.Config{
			Workers:     int64(r.Workers),
			MaxAttempts: r.MaxAttempts,
			TaskTimeout: time.Duration(r.TaskTimeoutSec) * time.Second,
		},
		Curator:    curate.Config{MaxFindings: r.MaxFindings},
		RunTimeout: time.Duration(r.RunTimeoutSec) * time.Second,
	}
}

// newCollaborators builds the collaborator backend from the config.
func newCollaborators() (collab.Collaborators, error) {
	c := config.Global.Collaborator
	client, err := collab.NewOpenAIClient(collab.Config{
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		RequestsPerSecond: c.RequestsPerSecond,
	})
	if err != nil {
		return collab.Collaborators{}, fmt.Errorf("building collaborator backend: %w", err)
	}
	return client.Roles(), nil
}

// openStageCache opens the configured stage store, or returns nil when
// caching is off.
func openStageCache(disable bool) (*cache.Store, error) {
	if disable || !config.Global.Cache.Enabled {
		return nil, nil
	}
	cfg := cache.DefaultConfig()
	cfg.Path = config.Global.Cache.Path
	store, err := cache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening stage cache: %w", err)
	}
	return store, nil
}
