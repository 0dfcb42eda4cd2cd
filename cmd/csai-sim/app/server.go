// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	ttmpl "text/template"
)

type Server struct {
	Router        *chi.Mux
	Cfg           *ServerConfig
	beacons       *beaconLog
	textTemplates *ttmpl.Template
}

// beaconLog accumulates received tracking beacons so that a session
// run can be inspected via the /beacons endpoint.
type beaconLog struct {
	mu     sync.Mutex
	counts map[string]int
}

func newBeaconLog() *beaconLog {
	return &beaconLog{counts: make(map[string]int)}
}

func (b *beaconLog) add(kind, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[kind+":"+id]++
}

type beaconCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (b *beaconLog) snapshot() []beaconCount {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]beaconCount, 0, len(b.counts))
	for k, n := range b.counts {
		out = append(out, beaconCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Server) healthzHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, true, http.StatusOK)
}

func (s *Server) configHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.Cfg, http.StatusOK)
}

// jsonResponse marshals message and give response with code
//
// Don't add any more content after this since Content-Length is set
func (s *Server) jsonResponse(w http.ResponseWriter, message any, code int) {
	raw, err := json.Marshal(message)
	if err != nil {
		http.Error(w, fmt.Sprintf("{message: \"%s\"}", err), http.StatusInternalServerError)
		slog.Error(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	_, err = w.Write(raw)
	if err != nil {
		slog.Error("could not write HTTP response", "err", err)
	}
}

func (s *Server) compileTemplates() error {
	t, err := ttmpl.New("vmap").Parse(sampleVMAPTemplate)
	if err != nil {
		return fmt.Errorf("compile VMAP template: %w", err)
	}
	s.textTemplates = t
	return nil
}
