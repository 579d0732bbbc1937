// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server exposes research runs over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/pipeline"
)

// Run states reported by the API.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// runEntry tracks one run's lifecycle for the API.
type runEntry struct {
	Status string
	Result *pipeline.Result
	Err    string
}

// Server owns the run registry and drives the pipeline for API requests.
//
// # Thread Safety
//
// Safe for concurrent use. Runs execute on their own goroutines and publish
// into the registry under the mutex.
type Server struct {
	pipe *pipeline.Pipeline
	log  *slog.Logger

	mu   sync.Mutex
	runs map[string]*runEntry
}

// NewServer creates a Server around a configured pipeline.
func NewServer(pipe *pipeline.Pipeline, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{pipe: pipe, log: log, runs: make(map[string]*runEntry)}
}

// startRunRequest is the POST /v1/runs body.
type startRunRequest struct {
	// DatasetPath is a server-local CSV path to research.
	DatasetPath string `json:"dataset_path" binding:"required"`
}

// StartRun launches a research run asynchronously.
func (s *Server) StartRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ds, err := dataset.Load(req.DatasetPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		runID := uuid.NewString()
		s.mu.Lock()
		s.runs[runID] = &runEntry{Status: StatusRunning}
		s.mu.Unlock()

		go func() {
			// The run outlives the HTTP request on purpose.
			result, err := s.pipe.RunWithID(context.Background(), runID, ds)
			s.mu.Lock()
			defer s.mu.Unlock()
			entry := s.runs[runID]
			if err != nil {
				entry.Status = StatusFailed
				entry.Err = err.Error()
				s.log.Error("Run failed", "run_id", runID, "error", err)
				return
			}
			entry.Status = StatusSucceeded
			entry.Result = result
		}()

		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": StatusRunning})
	}
}

// GetRun reports a run's status.
func (s *Server) GetRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		s.mu.Lock()
		entry, ok := s.runs[runID]
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
			return
		}
		body := gin.H{"run_id": runID, "status": entry.Status}
		if entry.Err != "" {
			body["error"] = entry.Err
		}
		if entry.Result != nil {
			body["sections"] = len(entry.Result.Report.Sections)
		}
		c.JSON(http.StatusOK, body)
	}
}

// GetReport returns a finished run's report.
func (s *Server) GetReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		s.mu.Lock()
		entry, ok := s.runs[runID]
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
			return
		}
		switch entry.Status {
		case StatusRunning:
			c.JSON(http.StatusConflict, gin.H{"error": "run still in progress"})
		case StatusFailed:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": entry.Err})
		default:
			c.JSON(http.StatusOK, entry.Result.Report)
		}
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
