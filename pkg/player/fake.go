// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package player

import (
	"sort"
	"sync"
)

// FakeSurface is an in-memory Surface for tests and simulation.
// Playback is driven by calling Advance. Listeners run synchronously
// on the goroutine that triggers an event.
type FakeSurface struct {
	mu         sync.Mutex
	nextID     int
	listeners  map[int]Listener
	currentPos float64
	duration   float64
	seeking    bool
	playing    bool
	muted      bool
	volume     float64
	source     string
	visible    bool

	playCalls  int
	pauseCalls int
}

// NewFakeSurface returns a fake surface with the given media duration.
func NewFakeSurface(duration float64) *FakeSurface {
	return &FakeSurface{
		listeners: map[int]Listener{},
		duration:  duration,
		volume:    1,
	}
}

func (s *FakeSurface) emit(ev Event) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	// map iteration order is random; deliver in registration order
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *FakeSurface) Play() {
	s.mu.Lock()
	s.playCalls++
	started := !s.playing && s.source != ""
	if started {
		s.playing = true
	}
	s.mu.Unlock()
	if started {
		s.emit(EventPlaying)
	}
}

func (s *FakeSurface) Pause() {
	s.mu.Lock()
	s.pauseCalls++
	paused := s.playing
	s.playing = false
	s.mu.Unlock()
	if paused {
		s.emit(EventPause)
	}
}

func (s *FakeSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPos
}

func (s *FakeSurface) SetCurrentTime(t float64) {
	s.mu.Lock()
	s.currentPos = t
	s.mu.Unlock()
}

func (s *FakeSurface) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetDuration changes the media duration, e.g. when a new source loads.
func (s *FakeSurface) SetDuration(d float64) {
	s.mu.Lock()
	s.duration = d
	s.mu.Unlock()
}

func (s *FakeSurface) Seeking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeking
}

func (s *FakeSurface) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *FakeSurface) SetMuted(muted bool) {
	s.mu.Lock()
	changed := s.muted != muted
	s.muted = muted
	s.mu.Unlock()
	if changed {
		s.emit(EventVolumeChange)
	}
}

func (s *FakeSurface) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *FakeSurface) SetVolume(volume float64) {
	s.mu.Lock()
	changed := s.volume != volume
	s.volume = volume
	s.mu.Unlock()
	if changed {
		s.emit(EventVolumeChange)
	}
}

func (s *FakeSurface) SetSource(url string) {
	s.mu.Lock()
	s.source = url
	s.currentPos = 0
	s.playing = false
	s.mu.Unlock()
}

func (s *FakeSurface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *FakeSurface) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

func (s *FakeSurface) AddListener(fn Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = fn
	return s.nextID
}

func (s *FakeSurface) RemoveListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// Advance moves playback forward by dt seconds when playing, emitting
// a time update and, at the end of the media, an ended event.
func (s *FakeSurface) Advance(dt float64) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.currentPos += dt
	ended := s.duration > 0 && s.currentPos >= s.duration
	if ended {
		s.currentPos = s.duration
		s.playing = false
	}
	s.mu.Unlock()
	s.emit(EventTimeUpdate)
	if ended {
		s.emit(EventEnded)
	}
}

// Seek simulates a user seek: the position jumps and a seeking event
// fires while Seeking reports true.
func (s *FakeSurface) Seek(pos float64) {
	s.mu.Lock()
	s.currentPos = pos
	s.seeking = true
	s.mu.Unlock()
	s.emit(EventSeeking)
	s.mu.Lock()
	s.seeking = false
	s.mu.Unlock()
}

// TriggerError emits an error event.
func (s *FakeSurface) TriggerError() {
	s.emit(EventError)
}

// Playing reports whether the surface is currently advancing.
func (s *FakeSurface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Visible reports the last visibility set on the surface.
func (s *FakeSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// PlayCalls returns the number of Play invocations.
func (s *FakeSurface) PlayCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playCalls
}

// PauseCalls returns the number of Pause invocations.
func (s *FakeSurface) PauseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseCalls
}
