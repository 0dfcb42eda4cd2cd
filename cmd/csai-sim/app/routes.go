// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"

	"github.com/Dash-Industry-Forum/csai/pkg/logging"
)

// Routes defines dispatches for all routes.
func (s *Server) Routes(ctx context.Context) error {
	for _, route := range logging.LogRoutes {
		s.Router.MethodFunc(route.Method, route.Path, route.Handler)
	}
	s.Router.MethodFunc("GET", "/healthz", s.healthzHandlerFunc)
	s.Router.MethodFunc("GET", "/config", s.configHandlerFunc)
	s.Router.MethodFunc("GET", "/vmap.xml", s.vmapHandlerFunc)
	s.Router.MethodFunc("GET", "/beacon", s.beaconHandlerFunc)
	s.Router.MethodFunc("GET", "/beacons", s.beaconsHandlerFunc)
	s.Router.MethodFunc("GET", "/media/*", s.mediaHandlerFunc)
	s.Router.MethodFunc("HEAD", "/media/*", s.mediaHandlerFunc)
	return nil
}
