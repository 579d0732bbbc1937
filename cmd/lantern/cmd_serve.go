// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/LanternAI/LanternStudio/cmd/lantern/config"
	"github.com/LanternAI/LanternStudio/services/studio/pipeline"
	"github.com/LanternAI/LanternStudio/services/studio/server"
)

// runServeCommand starts the HTTP API and blocks until interrupted.
func runServeCommand(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()
	slogger := logger.Slog()

	roles, err := newCollaborators()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	store, err := openStageCache(false)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	pipe := pipeline.New(roles, store, pipelineConfig(), slogger)
	api := server.NewServer(pipe, slogger)

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	server.SetupRoutes(router, api)

	addr := config.Global.Server.ListenAddr
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		slogger.Info("HTTP API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slogger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slogger.Error("Shutdown did not complete cleanly", "error", err)
	}
}
