// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package ads provides the normalized ad model and the resolver that
// turns VMAP/VAST documents into scheduled ad breaks.
package ads

import (
	"github.com/Dash-Industry-Forum/csai/pkg/events"
)

// BreakType positions a break relative to the content timeline.
type BreakType string

const (
	Preroll  BreakType = "preroll"
	Midroll  BreakType = "midroll"
	Postroll BreakType = "postroll"
)

// InsertionType tells how the ads get into the stream.
type InsertionType string

const (
	ClientSide InsertionType = "csai"
	ServerSide InsertionType = "ssai"
)

// VideoVariant is the ad-server classification of an ad.
type VideoVariant string

const (
	VariantNormal   VideoVariant = "NORMAL"
	VariantBumper   VideoVariant = "BUMPER"
	VariantVignette VideoVariant = "VIGNETTE"
	VariantTrailer  VideoVariant = "TRAILER"
)

// AdBreak is one scheduled break with its ads in play order.
// TimeOffset is identity for break-level tracking dedup.
type AdBreak struct {
	BreakType      BreakType
	InsertionType  InsertionType
	TimeOffset     int // seconds from content start, 0 means preroll
	Ads            []*Ad
	TrackingEvents BreakTracking
}

// BreakTracking holds the break-level beacon URL lists. The slices are
// always non-nil after resolution, possibly empty.
type BreakTracking struct {
	BreakStart []string
	BreakEnd   []string
}

// Ad is one playable ad with its selected creative.
type Ad struct {
	ID           string
	CustomAdID   string
	Programmatic bool
	System       string
	Sequence     int
	Title        string
	Variant      VideoVariant

	Creative *Creative

	ErrorURLs      []string
	ImpressionURLs []string
}

// TrackingURLs returns the beacon URLs for one event kind.
func (a *Ad) TrackingURLs(kind events.Kind) []string {
	switch kind {
	case events.Impression:
		return a.ImpressionURLs
	case events.Error:
		return a.ErrorURLs
	default:
		if a.Creative == nil {
			return nil
		}
		return a.Creative.TrackingEvents[kind]
	}
}

// Creative is the playable asset bundle of an ad. MediaFiles are
// already filtered and sorted; index 0 is what gets played.
type Creative struct {
	ID              string
	AdID            string
	Type            string
	Duration        int // seconds
	MediaFiles      []MediaFile
	TrackingEvents  map[events.Kind][]string
	ClickThroughURL string
}

// MediaFile is one encoded variant of a creative.
type MediaFile struct {
	ID       string
	FileURL  string
	MIMEType string
	Bitrate  int // kbps, 0 when not declared
	Width    int
	Height   int
}

// SourceItem pairs a timeline offset with a VAST source URL for the
// flat-list configuration mode.
type SourceItem struct {
	TimeOffset int
	URL        string
}
