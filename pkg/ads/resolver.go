// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package ads

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/Dash-Industry-Forum/csai/pkg/events"
	"github.com/Dash-Industry-Forum/csai/pkg/vast"
	"github.com/Dash-Industry-Forum/csai/pkg/vmap"
)

const (
	// DefaultBandwidthKbps is used for media-file selection until a
	// fetch has produced a measured estimate.
	DefaultBandwidthKbps = 500

	// ProgrammaticAdID marks an ad as programmatically sold.
	ProgrammaticAdID = "PROGRAMMATIC"

	// manualBreakOffset is the timeline offset given to manually
	// injected breaks.
	manualBreakOffset = 100

	playableMimeType      = "video/mp4"
	adServerExtensionType = "AdServer"
	linearBreakType       = "linear"
	linearCreativeType    = "linear"
)

// Resolver turns VMAP and VAST sources into normalized ad breaks.
// The bandwidth estimate is resolver-wide and last-writer-wins; it is
// read at selection time right after each resolution. A Resolver is
// safe for concurrent use.
type Resolver struct {
	client *vast.Client

	mu            sync.Mutex
	bandwidthKbps int
}

// NewResolver returns a Resolver with the ad-source fetch policy of
// this engine: credentialed fetches, 10 s timeout, wrapper chasing up
// to 10 levels.
func NewResolver() *Resolver {
	return &Resolver{
		client: vast.NewClient(vast.Options{
			WithCredentials: true,
			FollowWrappers:  true,
		}),
		bandwidthKbps: DefaultBandwidthKbps,
	}
}

// Bandwidth returns the current bandwidth estimate in kbps.
func (r *Resolver) Bandwidth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bandwidthKbps
}

// SetBandwidth overrides the bandwidth estimate. Mostly useful in tests.
func (r *Resolver) SetBandwidth(kbps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bandwidthKbps = kbps
}

// updateBandwidth adopts the client's latest throughput measurement.
func (r *Resolver) updateBandwidth() {
	if est := r.client.EstimatedBitrate(); est > 0 {
		r.SetBandwidth(est)
	}
}

// ResolveVMAP fetches a VMAP container manifest and resolves its breaks.
// Resolution stops at the first break that is not of linear type; the
// breaks gathered up to that point are returned. Ordering follows the
// manifest; the caller sorts by time offset.
func (r *Resolver) ResolveVMAP(ctx context.Context, url string) ([]*AdBreak, error) {
	slog.Debug("resolving VMAP", "url", url)
	doc, err := vmap.Get(ctx, nil, url)
	if err != nil {
		return nil, err
	}
	breaks := make([]*AdBreak, 0, len(doc.AdBreaks))
	for _, vb := range doc.AdBreaks {
		if vb.BreakType != linearBreakType {
			slog.Debug("stopping at non-linear break", "breakType", vb.BreakType)
			return breaks, nil
		}
		var flatAds []vast.FlatAd
		if vb.AdSource != nil && vb.AdSource.VASTAdData != nil {
			resp, err := r.client.Parse(ctx, vb.AdSource.VASTAdData.Data)
			if err != nil {
				slog.Warn("embedded VAST parse failed", "breakId", vb.BreakID, "err", err)
			} else {
				flatAds = resp.Ads
			}
			r.updateBandwidth()
		}
		breaks = append(breaks, r.mapBreak(vb.TimeOffset, vb.TrackingEvents, flatAds))
	}
	slog.Debug("resolved VMAP", "url", url, "breaks", len(breaks))
	return breaks, nil
}

// ResolveSources resolves a flat list of (offset, VAST URL) pairs.
// A failed item yields no break but does not stop the remaining items.
func (r *Resolver) ResolveSources(ctx context.Context, items []SourceItem) ([]*AdBreak, error) {
	breaks := make([]*AdBreak, 0, len(items))
	for _, item := range items {
		resp, err := r.client.GetAndParse(ctx, item.URL)
		if err != nil {
			slog.Warn("VAST source failed", "url", item.URL, "err", err)
			continue
		}
		r.updateBandwidth()
		breaks = append(breaks, r.mapBreak(strconv.Itoa(item.TimeOffset), nil, resp.Ads))
	}
	slog.Debug("resolved VAST sources", "items", len(items), "breaks", len(breaks))
	return breaks, nil
}

// ResolveSingle resolves one VAST URL into a manually injectable break.
func (r *Resolver) ResolveSingle(ctx context.Context, vastURL string) (*AdBreak, error) {
	resp, err := r.client.GetAndParse(ctx, vastURL)
	if err != nil {
		return nil, err
	}
	r.updateBandwidth()
	return r.mapBreak(strconv.Itoa(manualBreakOffset), nil, resp.Ads), nil
}

// mapBreak normalizes one break. An offset of 0 (or the "start" token)
// always classifies the break as preroll.
func (r *Resolver) mapBreak(timeOffset string, tracking *vmap.TrackingEvents, flatAds []vast.FlatAd) *AdBreak {
	offset, err := ParseTimeOffset(timeOffset)
	if err != nil {
		slog.Warn("bad break time offset, using 0", "timeOffset", timeOffset, "err", err)
		offset = 0
	}
	breakType := Midroll
	if offset == 0 {
		breakType = Preroll
	}
	brk := AdBreak{
		BreakType:     breakType,
		InsertionType: ClientSide,
		TimeOffset:    offset,
		TrackingEvents: BreakTracking{
			BreakStart: trackingURIs(tracking, events.BreakStart),
			BreakEnd:   trackingURIs(tracking, events.BreakEnd),
		},
	}
	for _, flat := range flatAds {
		if ad := r.mapAd(flat); ad != nil {
			brk.Ads = append(brk.Ads, ad)
		}
	}
	return &brk
}

func trackingURIs(tracking *vmap.TrackingEvents, kind events.Kind) []string {
	uris := []string{}
	if tracking == nil {
		return uris
	}
	for _, tr := range tracking.Tracking {
		if tr.Event == string(kind) {
			uris = append(uris, strings.TrimSpace(tr.URI))
		}
	}
	return uris
}

// mapAd normalizes one ad. Returns nil when the ad has no linear
// creative with a playable media file; such ads are silently dropped.
func (r *Resolver) mapAd(flat vast.FlatAd) *Ad {
	customAdID, variant := adServerInfo(flat.Extensions)

	var creative *Creative
	for _, raw := range flat.Creatives {
		c := r.mapCreative(raw)
		if c.Type == linearCreativeType && len(c.MediaFiles) > 0 {
			creative = c
			break
		}
	}
	if creative == nil {
		slog.Debug("dropping ad without playable creative", "id", flat.ID)
		return nil
	}

	return &Ad{
		ID:             flat.ID,
		CustomAdID:     customAdID,
		Programmatic:   customAdID == ProgrammaticAdID,
		System:         flat.System,
		Sequence:       flat.Sequence,
		Title:          flat.Title,
		Variant:        variant,
		Creative:       creative,
		ErrorURLs:      flat.ErrorURLs,
		ImpressionURLs: flat.ImpressionURLs,
	}
}

// adServerInfo extracts the custom ad id and video variant from the
// vendor extension block with type "AdServer".
func adServerInfo(exts []vast.Extension) (string, VideoVariant) {
	customAdID := ""
	variant := VariantNormal
	for _, ext := range exts {
		if ext.Type != adServerExtensionType {
			continue
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(ext.Data); err != nil {
			slog.Debug("unreadable AdServer extension", "err", err)
			continue
		}
		info := doc.FindElement("//AdInfo")
		if info == nil {
			continue
		}
		customAdID = info.SelectAttrValue("customaid", "")
		if v := info.SelectAttrValue("variant", ""); v != "" {
			variant = VideoVariant(v)
		}
		break
	}
	return customAdID, variant
}

func (r *Resolver) mapCreative(raw vast.Creative) *Creative {
	c := Creative{
		ID:             raw.ID,
		AdID:           raw.AdID,
		TrackingEvents: map[events.Kind][]string{},
	}
	switch {
	case raw.Linear != nil:
		c.Type = linearCreativeType
	case raw.NonLinearAds != nil:
		c.Type = "nonlinear"
	case raw.CompanionAds != nil:
		c.Type = "companion"
	default:
		c.Type = "unknown"
	}
	lin := raw.Linear
	if lin == nil {
		return &c
	}
	if lin.Duration != "" {
		dur, err := vast.ParseDuration(lin.Duration)
		if err != nil {
			slog.Debug("bad creative duration", "duration", lin.Duration, "err", err)
		} else {
			c.Duration = dur
		}
	}
	// Native click-tracking URLs and any clickThrough tracking list
	// are both kept; duplicates are allowed.
	if lin.VideoClicks != nil {
		for _, click := range lin.VideoClicks.ClickTracking {
			c.TrackingEvents[events.ClickThrough] = append(c.TrackingEvents[events.ClickThrough],
				strings.TrimSpace(click.URL))
		}
		if lin.VideoClicks.ClickThrough != nil {
			c.ClickThroughURL = strings.TrimSpace(lin.VideoClicks.ClickThrough.URL)
		}
	}
	if lin.TrackingEvents != nil {
		for _, tr := range lin.TrackingEvents.Tracking {
			kind := events.Kind(tr.Event)
			c.TrackingEvents[kind] = append(c.TrackingEvents[kind], strings.TrimSpace(tr.URL))
		}
	}
	var files []MediaFile
	for _, mf := range lin.MediaFiles.MediaFile {
		files = append(files, MediaFile{
			ID:       mf.ID,
			FileURL:  strings.TrimSpace(mf.URL),
			MIMEType: mf.Type,
			Bitrate:  mf.Bitrate,
			Width:    mf.Width,
			Height:   mf.Height,
		})
	}
	c.MediaFiles = SelectMediaFiles(files, r.Bandwidth())
	return &c
}

// ParseTimeOffset converts a VMAP time offset to seconds. "start" and
// "0" give 0. Other values are colon-separated base-60 components, so
// "00:05:00" gives 300.
func ParseTimeOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "start" || s == "0" {
		return 0, nil
	}
	secs, err := vast.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad time offset %q: %w", s, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative time offset %q", s)
	}
	return secs, nil
}
