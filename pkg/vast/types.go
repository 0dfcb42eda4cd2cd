// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package vast provides a document model and fetching parser for the
// Video Ad Serving Template (VAST) XML format, including wrapper
// chasing up to a configurable depth.
package vast

import "encoding/xml"

// VAST is the root element of a VAST document.
type VAST struct {
	XMLName xml.Name `xml:"VAST"`
	Version string   `xml:"version,attr"`
	Ads     []Ad     `xml:"Ad"`
}

// Ad holds either an InLine ad or a Wrapper pointing to a further document.
type Ad struct {
	ID       string   `xml:"id,attr"`
	Sequence int      `xml:"sequence,attr,omitempty"`
	InLine   *InLine  `xml:"InLine,omitempty"`
	Wrapper  *Wrapper `xml:"Wrapper,omitempty"`
}

// InLine contains all data needed to play the ad.
type InLine struct {
	AdSystem   AdSystem     `xml:"AdSystem"`
	AdTitle    string       `xml:"AdTitle"`
	Error      []string     `xml:"Error,omitempty"`
	Impression []Impression `xml:"Impression"`
	Creatives  Creatives    `xml:"Creatives"`
	Extensions *Extensions  `xml:"Extensions,omitempty"`
}

// Wrapper points to another VAST response that must be fetched and merged.
type Wrapper struct {
	AdSystem     AdSystem     `xml:"AdSystem"`
	VASTAdTagURI string       `xml:"VASTAdTagURI"`
	Error        []string     `xml:"Error,omitempty"`
	Impression   []Impression `xml:"Impression"`
	Creatives    Creatives    `xml:"Creatives,omitempty"`
	Extensions   *Extensions  `xml:"Extensions,omitempty"`
}

type AdSystem struct {
	Version string `xml:"version,attr,omitempty"`
	Name    string `xml:",chardata"`
}

// Impression is a tracking pixel fired when the ad becomes visible.
type Impression struct {
	ID  string `xml:"id,attr,omitempty"`
	URL string `xml:",chardata"`
}

type Creatives struct {
	Creative []Creative `xml:"Creative"`
}

type Creative struct {
	ID       string  `xml:"id,attr,omitempty"`
	AdID     string  `xml:"adId,attr,omitempty"`
	Sequence int     `xml:"sequence,attr,omitempty"`
	Linear   *Linear `xml:"Linear,omitempty"`
	// NonLinearAds and CompanionAds are recognized but not played.
	NonLinearAds *struct{} `xml:"NonLinearAds,omitempty"`
	CompanionAds *struct{} `xml:"CompanionAds,omitempty"`
}

type Linear struct {
	SkipOffset     string          `xml:"skipoffset,attr,omitempty"`
	Duration       string          `xml:"Duration"`
	MediaFiles     MediaFiles      `xml:"MediaFiles"`
	VideoClicks    *VideoClicks    `xml:"VideoClicks,omitempty"`
	TrackingEvents *TrackingEvents `xml:"TrackingEvents,omitempty"`
}

type MediaFiles struct {
	MediaFile []MediaFile `xml:"MediaFile"`
}

// MediaFile describes one encoded variant of the creative.
type MediaFile struct {
	ID       string `xml:"id,attr,omitempty"`
	Delivery string `xml:"delivery,attr"`
	Type     string `xml:"type,attr"`
	Bitrate  int    `xml:"bitrate,attr,omitempty"`
	Width    int    `xml:"width,attr"`
	Height   int    `xml:"height,attr"`
	URL      string `xml:",chardata"`
}

type VideoClicks struct {
	ClickThrough  *Click  `xml:"ClickThrough,omitempty"`
	ClickTracking []Click `xml:"ClickTracking,omitempty"`
}

type Click struct {
	ID  string `xml:"id,attr,omitempty"`
	URL string `xml:",chardata"`
}

type TrackingEvents struct {
	Tracking []Tracking `xml:"Tracking"`
}

// Tracking maps one lifecycle event name to a beacon URL.
type Tracking struct {
	Event string `xml:"event,attr"`
	URL   string `xml:",chardata"`
}

// Extensions holds vendor-specific blocks. The inner XML is kept raw
// since extension content has no schema.
type Extensions struct {
	Extension []Extension `xml:"Extension"`
}

type Extension struct {
	Type string `xml:"type,attr"`
	Data []byte `xml:",innerxml"`
}
