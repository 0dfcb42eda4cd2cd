// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package player defines the playback-surface boundary of the ad
// engine, an event filter that normalizes raw surface signals, and a
// scriptable fake surface for tests and simulation.
package player

// Event is a raw lifecycle signal from a playback surface.
type Event string

const (
	EventPlaying      Event = "playing"
	EventPause        Event = "pause"
	EventEnded        Event = "ended"
	EventSeeking      Event = "seeking"
	EventTimeUpdate   Event = "timeupdate"
	EventVolumeChange Event = "volumechange"
	EventError        Event = "error"
)

// Listener receives raw surface events.
type Listener func(Event)

// Surface is one physical playback output. Implementations wrap a real
// player; FakeSurface provides an in-memory one. Times are in seconds.
type Surface interface {
	Play()
	Pause()

	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	Seeking() bool

	Muted() bool
	SetMuted(muted bool)
	Volume() float64
	SetVolume(volume float64)

	SetSource(url string)
	Source() string
	SetVisible(visible bool)

	// AddListener registers a raw event listener and returns an id
	// for RemoveListener. Listeners are called synchronously.
	AddListener(fn Listener) int
	RemoveListener(id int)
}
