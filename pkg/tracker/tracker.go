// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package tracker fires tracking events exactly once per entity and
// event kind, emitting public notifications and dispatching beacon
// requests.
package tracker

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dash-Industry-Forum/csai/pkg/ads"
	"github.com/Dash-Industry-Forum/csai/pkg/events"
)

var beaconsTotal = newCounter("csai_tracking_beacons_total",
	"Number of tracking beacons dispatched, partitioned by event kind.")

func newCounter(counterName, help string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        counterName,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": "csai"},
		},
		[]string{"kind"},
	)
	prometheus.MustRegister(cv)
	return cv
}

// Dispatcher sends one tracking beacon. Implementations must not block
// the caller and must swallow failures.
type Dispatcher interface {
	Dispatch(url string)
}

// HTTPDispatcher fires one-shot GET requests without inspecting the
// response beyond closing it.
type HTTPDispatcher struct {
	Client *http.Client
}

func (d *HTTPDispatcher) Dispatch(url string) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	go func() {
		resp, err := client.Get(url)
		if err != nil {
			slog.Debug("beacon failed", "url", url, "err", err)
			return
		}
		resp.Body.Close()
	}()
}

type pairSet map[string]map[events.Kind]bool

func (p pairSet) fired(id string, kind events.Kind) bool {
	return p[id][kind]
}

func (p pairSet) mark(id string, kind events.Kind) {
	if p[id] == nil {
		p[id] = make(map[events.Kind]bool)
	}
	p[id][kind] = true
}

// Tracker remembers which (entity, kind) pairs have fired. Ads are
// identified by id, breaks by time offset. Each pair fires the public
// notification and its beacons at most once per Tracker lifetime; the
// notification is emitted before the beacons go out.
type Tracker struct {
	mu         sync.Mutex
	emitter    *events.Emitter
	dispatcher Dispatcher
	ads        pairSet
	breaks     pairSet
}

// New returns a Tracker using the given emitter for notifications.
// A nil dispatcher gets a default HTTP dispatcher with a 10 s timeout.
func New(emitter *events.Emitter, dispatcher Dispatcher) *Tracker {
	if dispatcher == nil {
		dispatcher = &HTTPDispatcher{Client: &http.Client{Timeout: 10 * time.Second}}
	}
	return &Tracker{
		emitter:    emitter,
		dispatcher: dispatcher,
		ads:        make(pairSet),
		breaks:     make(pairSet),
	}
}

// Emitter returns the notification emitter.
func (t *Tracker) Emitter() *events.Emitter {
	return t.emitter
}

// AdEvent fires kind for ad. Repeated calls for the same (ad id, kind)
// are no-ops.
func (t *Tracker) AdEvent(ad *ads.Ad, kind events.Kind) {
	if ad == nil || kind == "" {
		return
	}
	t.mu.Lock()
	if t.ads.fired(ad.ID, kind) {
		t.mu.Unlock()
		return
	}
	t.ads.mark(ad.ID, kind)
	t.mu.Unlock()

	t.emitter.Emit(kind, ad)
	t.dispatch(kind, ad.TrackingURLs(kind))
}

// BreakEvent fires kind for brk. Repeated calls for the same
// (time offset, kind) are no-ops.
func (t *Tracker) BreakEvent(brk *ads.AdBreak, kind events.Kind) {
	if brk == nil || kind == "" {
		return
	}
	id := breakID(brk)
	t.mu.Lock()
	if t.breaks.fired(id, kind) {
		t.mu.Unlock()
		return
	}
	t.breaks.mark(id, kind)
	t.mu.Unlock()

	t.emitter.Emit(kind, brk)
	switch kind {
	case events.BreakStart:
		t.dispatch(kind, brk.TrackingEvents.BreakStart)
	case events.BreakEnd:
		t.dispatch(kind, brk.TrackingEvents.BreakEnd)
	}
}

// Reset forgets all fired pairs.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ads = make(pairSet)
	t.breaks = make(pairSet)
}

func (t *Tracker) dispatch(kind events.Kind, urls []string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		slog.Debug("tracking beacon", "kind", kind, "url", url)
		beaconsTotal.WithLabelValues(string(kind)).Inc()
		t.dispatcher.Dispatch(url)
	}
}

// breakID gives the dedup identity of a break, which is its time offset.
func breakID(brk *ads.AdBreak) string {
	return strconv.Itoa(brk.TimeOffset)
}
