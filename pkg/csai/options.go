// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package csai drives client-side ad insertion: it resolves configured
// ad sources into scheduled breaks and switches playback between a
// content surface and an ad surface at the scheduled offsets, firing
// each tracking event exactly once.
package csai

import (
	"errors"
	"log/slog"

	"github.com/Dash-Industry-Forum/csai/pkg/ads"
	"github.com/Dash-Industry-Forum/csai/pkg/player"
	"github.com/Dash-Industry-Forum/csai/pkg/tracker"
)

var (
	// ErrNoContentSurface is returned when Options lacks the content surface.
	ErrNoContentSurface = errors.New("content surface is required")
	// ErrNoAdSurface is returned when neither an ad surface nor a
	// factory for one is configured.
	ErrNoAdSurface = errors.New("ad surface or ad-surface factory is required")
)

// Options configure a Manager.
type Options struct {
	// ContentSurface plays the main content. Required.
	ContentSurface player.Surface

	// AdSurface plays the ads. Exactly one of AdSurface and
	// NewAdSurface should be set; when both are, AdSurface wins.
	AdSurface player.Surface
	// NewAdSurface lets the Manager create and own its ad surface
	// (container mode). An owned surface is detached on Destroy.
	NewAdSurface func() player.Surface

	// DisablePlaybackManagement leaves pausing and resuming of the
	// content surface to the caller. Ad-surface visibility and
	// tracking are driven regardless.
	DisablePlaybackManagement bool
	// Autoplay starts ad playback without waiting for Play.
	Autoplay bool
	// IsLive declares the content as live. A live stream permits at
	// most one VAST source and no VMAP.
	IsLive bool

	// VMAPURL points to a container manifest. Mutually exclusive with
	// Sources; when both are set, Sources win.
	VMAPURL string
	// Sources is a flat list of (time offset, VAST URL) pairs.
	Sources []ads.SourceItem

	// BeaconDispatcher overrides how tracking beacons are sent.
	// Defaults to fire-and-forget HTTP GET requests.
	BeaconDispatcher tracker.Dispatcher

	// Debug enables verbose playback logging.
	Debug bool
}

// validateOptions normalizes opts, logging warnings for soft problems
// and returning an error only when no usable surface wiring remains.
func validateOptions(opts Options) (Options, error) {
	if opts.ContentSurface == nil {
		return opts, ErrNoContentSurface
	}
	if opts.AdSurface == nil && opts.NewAdSurface == nil {
		return opts, ErrNoAdSurface
	}
	if opts.AdSurface != nil && opts.NewAdSurface != nil {
		slog.Warn("both ad surface and factory configured, using the ad surface")
		opts.NewAdSurface = nil
	}
	if !opts.IsLive && opts.VMAPURL == "" && len(opts.Sources) == 0 {
		slog.Error("no VMAP URL or VAST sources configured, no ads will play")
	}
	if opts.VMAPURL != "" && len(opts.Sources) > 0 {
		slog.Warn("both VMAP URL and VAST sources configured, using the sources")
		opts.VMAPURL = ""
	}
	if opts.IsLive && (opts.VMAPURL != "" || len(opts.Sources) > 1) {
		slog.Warn("live stream permits at most one VAST source, ignoring ad sources")
	}
	return opts, nil
}
