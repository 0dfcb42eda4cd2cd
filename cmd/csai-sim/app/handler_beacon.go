// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"log/slog"
	"net/http"
)

// beaconHandlerFunc receives tracking beacons fired by the playback
// session. Beacons are counted per kind in prometheus and per
// kind+entity in the in-memory log.
func (s *Server) beaconHandlerFunc(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		http.Error(w, "missing kind", http.StatusBadRequest)
		return
	}
	id := q.Get("ad")
	if id == "" {
		id = q.Get("break")
	}
	s.beacons.add(kind, id)
	beaconReqs.WithLabelValues(kind).Inc()
	slog.Debug("beacon received", "kind", kind, "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// beaconsHandlerFunc reports all beacons received so far.
func (s *Server) beaconsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.beacons.snapshot(), http.StatusOK)
}
