// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dash-Industry-Forum/csai/cmd/csai-sim/app"
	"github.com/Dash-Industry-Forum/csai/pkg/logging"
)

const (
	gracefulShutdownWait = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	cfg, err := app.LoadConfig(os.Args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err.Error())
		return 1
	}

	if err := logging.InitSlog(cfg.LogLevel, cfg.LogFormat); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %s\n", err.Error())
		return 1
	}

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	startIssue := make(chan struct{}, 1)
	stopServer := make(chan struct{}, 1)

	ctx, cancelBkg := context.WithCancel(context.Background())

	go func() {
		select {
		case <-startIssue:
		case <-stopSignal:
		}
		cancelBkg()
		stopServer <- struct{}{}
	}()

	server, err := app.SetupServer(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error setting up server: %s\n", err.Error())
		return 1
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", server.Cfg.Port),
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "err", err)
			exitCode = 1
			startIssue <- struct{}{}
		}
	}()

	if cfg.Session {
		go func() {
			vmapURL := cfg.VMAPURL
			if vmapURL == "" {
				vmapURL = fmt.Sprintf("http://localhost:%d/vmap.xml", cfg.Port)
			}
			// Give the HTTP server a moment to start listening.
			time.Sleep(200 * time.Millisecond)
			session, err := app.NewSession(cfg, vmapURL)
			if err != nil {
				slog.Error("session setup failed", "err", err)
				return
			}
			if err := session.Run(ctx); err != nil {
				slog.Info("session stopped", "reason", err)
			}
		}()
	}

	<-stopServer // Wait here for stop signal
	slog.Info("Server to be stopped")

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		slog.Info("Server stopped")
		cancelTimeout()
		time.Sleep(gracefulShutdownWait)
	}()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Server shutdown failed", "err", err)
	}
	return exitCode
}
