// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dash-Industry-Forum/csai/pkg/logging"
)

// SetupServer sets up router, middleware, and server, given koanf configuration.
func SetupServer(ctx context.Context, cfg *ServerConfig) (*Server, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.SlogMiddleWare(slog.Default()))
	r.Use(middleware.Recoverer)
	r.Use(addVersionAndCORSHeaders)
	r.Use(NewPrometheusMiddleware())

	// Add prometheus counters
	r.Mount("/metrics", promhttp.Handler())

	server := Server{
		Router:  r,
		Cfg:     cfg,
		beacons: newBeaconLog(),
	}

	if err := server.compileTemplates(); err != nil {
		return nil, err
	}

	if err := server.Routes(ctx); err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}

	return &server, nil
}
