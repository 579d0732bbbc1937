// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/pipeline"
	"github.com/LanternAI/LanternStudio/services/studio/plan"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	scripted := &collab.Scripted{
		BreadthBatches: [][]collab.Candidate{{
			{
				Text:          "How are citations distributed?",
				Category:      "distribution",
				SourceColumns: []string{"Citations"},
				Visualization: research.VizHistogram,
			},
		}},
		DefaultPlan: `{"steps":[{"op":"limit","n":100}]}`,
	}
	cfg := pipeline.DefaultConfig()
	cfg.Planner = plan.Config{TargetQuestions: 1, MaxRounds: 1}
	pipe := pipeline.New(scripted.Roles(), nil, cfg, nil)

	router := gin.New()
	SetupRoutes(router, NewServer(pipe, nil))
	return router
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papers.csv")
	csv := "Conference,Year,Citations\nICML,2019,120\nNeurIPS,2020,80\nKDD,2021,40\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
	return path
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doJSON(testRouter(t), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartRunValidation(t *testing.T) {
	router := testRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/runs", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/v1/runs", `{"dataset_path":"/nonexistent.csv"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunLifecycle(t *testing.T) {
	router := testRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/runs",
		`{"dataset_path":"`+writeCSV(t)+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)
	require.Equal(t, StatusRunning, started.Status)

	require.Eventually(t, func() bool {
		w := doJSON(router, http.MethodGet, "/v1/runs/"+started.RunID, "")
		if w.Code != http.StatusOK {
			return false
		}
		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status == StatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	w = doJSON(router, http.MethodGet, "/v1/runs/"+started.RunID+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rep research.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.NotEmpty(t, rep.Title)
	require.Len(t, rep.Sections, 1)
}

func TestUnknownRun(t *testing.T) {
	router := testRouter(t)

	w := doJSON(router, http.MethodGet, "/v1/runs/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/v1/runs/nope/report", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
