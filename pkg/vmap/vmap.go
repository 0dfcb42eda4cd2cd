// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package vmap provides a document model and fetcher for the Video
// Multiple Ad Playlist (VMAP) container-manifest format.
package vmap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

// VMAP is the root element of a VMAP document.
type VMAP struct {
	XMLName  xml.Name  `xml:"VMAP"`
	Version  string    `xml:"version,attr"`
	AdBreaks []AdBreak `xml:"AdBreak"`
}

// AdBreak describes one scheduled break in the content timeline.
type AdBreak struct {
	TimeOffset     string          `xml:"timeOffset,attr"`
	BreakType      string          `xml:"breakType,attr"`
	BreakID        string          `xml:"breakId,attr,omitempty"`
	AdSource       *AdSource       `xml:"AdSource,omitempty"`
	TrackingEvents *TrackingEvents `xml:"TrackingEvents,omitempty"`
}

// AdSource carries either an embedded VAST document or a URI to one.
type AdSource struct {
	ID         string      `xml:"id,attr,omitempty"`
	VASTAdData *VASTAdData `xml:"VASTAdData,omitempty"`
	AdTagURI   string      `xml:"AdTagURI,omitempty"`
}

// VASTAdData keeps the embedded VAST document as raw XML for the VAST
// parser to consume.
type VASTAdData struct {
	Data []byte `xml:",innerxml"`
}

type TrackingEvents struct {
	Tracking []Tracking `xml:"Tracking"`
}

// Tracking maps one break-lifecycle event name to a beacon URL.
type Tracking struct {
	Event string `xml:"event,attr"`
	URI   string `xml:",chardata"`
}

// Get fetches and unmarshals the VMAP document at url.
func Get(ctx context.Context, client *http.Client, url string) (*VMAP, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch VMAP %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch VMAP %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse unmarshals a VMAP document.
func Parse(data []byte) (*VMAP, error) {
	var doc VMAP
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal VMAP: %w", err)
	}
	return &doc, nil
}
