// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package events provides the tracking-event vocabulary and a small
// typed publish/subscribe emitter used for public notifications.
package events

// Kind identifies a playback tracking event.
type Kind string

// Ad-level tracking events.
const (
	Start         Kind = "start"
	Impression    Kind = "impression"
	Expand        Kind = "expand"
	Mute          Kind = "mute"
	Unmute        Kind = "unmute"
	Pause         Kind = "pause"
	Resume        Kind = "resume"
	Rewind        Kind = "rewind"
	Close         Kind = "close"
	Complete      Kind = "complete"
	FirstQuartile Kind = "firstQuartile"
	Midpoint      Kind = "midpoint"
	ThirdQuartile Kind = "thirdQuartile"
	ClickThrough  Kind = "clickThrough"
	Error         Kind = "error"
)

// Break-level tracking events.
const (
	BreakStart Kind = "breakStart"
	BreakEnd   Kind = "breakEnd"
)

// Wildcard subscriptions receive every emitted kind.
const Wildcard Kind = "*"

// AdKinds lists all ad-level tracking event kinds.
var AdKinds = []Kind{
	Start, Impression, Expand, Mute, Unmute, Pause, Resume, Rewind,
	Close, Complete, FirstQuartile, Midpoint, ThirdQuartile,
	ClickThrough, Error,
}

// BreakKinds lists all break-level tracking event kinds.
var BreakKinds = []Kind{BreakStart, BreakEnd}
