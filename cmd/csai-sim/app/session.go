// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dash-Industry-Forum/csai/pkg/ads"
	"github.com/Dash-Industry-Forum/csai/pkg/csai"
	"github.com/Dash-Industry-Forum/csai/pkg/events"
	"github.com/Dash-Industry-Forum/csai/pkg/player"
)

// Session drives a simulated playback against the ad server. Two fake
// surfaces stand in for the content and ad players. Every wall-clock
// tick advances whichever surface is active by one second of media
// time, so a ten-minute program plays out in a few seconds.
type Session struct {
	cfg     *ServerConfig
	content *player.FakeSurface
	adView  *player.FakeSurface
	mgr     *csai.Manager
}

// NewSession creates a playback session against vmapURL.
func NewSession(cfg *ServerConfig, vmapURL string) (*Session, error) {
	content := player.NewFakeSurface(float64(cfg.ContentDurationS))
	content.SetSource(fmt.Sprintf("sim://content/%ds", cfg.ContentDurationS))
	adView := player.NewFakeSurface(0)

	mgr, err := csai.New(csai.Options{
		ContentSurface: content,
		AdSurface:      adView,
		Autoplay:       true,
		IsLive:         cfg.IsLive,
		VMAPURL:        vmapURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create ad manager: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		content: content,
		adView:  adView,
		mgr:     mgr,
	}
	// The fake ad surface needs a media duration before it can play
	// a creative out to its end.
	mgr.On(events.Start, func(kind events.Kind, data any) {
		if ad, ok := data.(*ads.Ad); ok && ad.Creative != nil {
			adView.SetDuration(float64(ad.Creative.Duration))
		}
	})
	mgr.On(events.Wildcard, func(kind events.Kind, data any) {
		slog.Info("tracking event", "kind", string(kind), "entity", entityName(data))
	})
	return s, nil
}

func entityName(data any) string {
	switch d := data.(type) {
	case *ads.Ad:
		return d.ID
	case *ads.AdBreak:
		return fmt.Sprintf("break@%d", d.TimeOffset)
	default:
		return "-"
	}
}

// Run plays the session to the end of content or until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.mgr.Destroy()

	s.mgr.Play()
	ticker := time.NewTicker(time.Duration(s.cfg.TickMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
		if s.content.CurrentTime() >= s.content.Duration() {
			slog.Info("content finished", "position", s.content.CurrentTime())
			return nil
		}
	}
}

// tick advances the active surface by one second of media time.
func (s *Session) tick() {
	if s.adView.Playing() {
		s.adView.Advance(1)
		return
	}
	if s.content.Playing() {
		s.content.Advance(1)
	}
}
