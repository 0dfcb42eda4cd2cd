// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package player

import "sync"

// FilterEvent is a normalized playback event derived from the raw
// surface signals.
type FilterEvent string

const (
	FilterPlaying    FilterEvent = "playing"
	FilterPause      FilterEvent = "pause"
	FilterResume     FilterEvent = "resume"
	FilterTimeUpdate FilterEvent = "timeupdate"
	FilterEnded      FilterEvent = "ended"
	FilterError      FilterEvent = "error"
)

// EventFilter normalizes the raw event stream of one surface:
// the first playing signal becomes FilterPlaying, playing after a
// pause becomes FilterResume, and pause signals at the very end of the
// timeline are suppressed since they are part of normal ending.
//
// The seek guard of the orchestrator deliberately bypasses this filter
// and listens on the raw surface.
type EventFilter struct {
	mu         sync.Mutex
	surface    Surface
	listenerID int
	handlers   map[FilterEvent][]func()
	started    bool
	paused     bool
}

// NewEventFilter attaches a filter to surface.
func NewEventFilter(surface Surface) *EventFilter {
	f := &EventFilter{
		surface:  surface,
		handlers: map[FilterEvent][]func(){},
	}
	f.listenerID = surface.AddListener(f.onRawEvent)
	return f
}

// On registers fn for the given normalized event.
func (f *EventFilter) On(ev FilterEvent, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[ev] = append(f.handlers[ev], fn)
}

// Clear removes all handlers and resets the playback bookkeeping.
// Called between ads.
func (f *EventFilter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = map[FilterEvent][]func(){}
	f.started = false
	f.paused = false
}

// Destroy detaches the filter from its surface.
func (f *EventFilter) Destroy() {
	f.Clear()
	f.surface.RemoveListener(f.listenerID)
}

func (f *EventFilter) onRawEvent(ev Event) {
	f.mu.Lock()
	var out []FilterEvent
	switch ev {
	case EventPlaying:
		switch {
		case !f.started:
			f.started = true
			out = append(out, FilterPlaying)
		case f.paused:
			f.paused = false
			out = append(out, FilterResume)
		}
	case EventPause:
		// a pause at the end of the timeline is part of ending
		if f.started && !f.paused && !f.atEnd() {
			f.paused = true
			out = append(out, FilterPause)
		}
	case EventEnded:
		out = append(out, FilterEnded)
	case EventTimeUpdate:
		out = append(out, FilterTimeUpdate)
	case EventError:
		out = append(out, FilterError)
	}
	var fns []func()
	for _, e := range out {
		fns = append(fns, f.handlers[e]...)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// atEnd must be called with mu held.
func (f *EventFilter) atEnd() bool {
	dur := f.surface.Duration()
	return dur > 0 && f.surface.CurrentTime() >= dur
}
