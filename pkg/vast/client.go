// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package vast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds one ad-source fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultWrapperLimit bounds the wrapper-chasing depth.
	DefaultWrapperLimit = 10
)

// Options configure a Client.
type Options struct {
	Timeout         time.Duration // zero means DefaultTimeout
	WithCredentials bool          // keep cookies across fetches
	WrapperLimit    int           // zero means DefaultWrapperLimit
	FollowWrappers  bool
}

// FlatAd is an InLine ad after wrapper flattening. Tracking data from
// the wrapper chain has been merged into the ad and its creatives.
type FlatAd struct {
	ID             string
	Sequence       int
	System         string
	Title          string
	ErrorURLs      []string
	ImpressionURLs []string
	Creatives      []Creative
	Extensions     []Extension
}

// Response is the flattened result of parsing one VAST document.
type Response struct {
	Version string
	Ads     []FlatAd
}

// Client fetches and parses VAST documents. It keeps a running
// bandwidth estimate derived from document fetch throughput,
// last-writer-wins. A Client is safe for concurrent use.
type Client struct {
	opts       Options
	httpClient *http.Client

	mu            sync.Mutex
	estimatedKbps int
}

// NewClient returns a Client with the given options, applying defaults
// for zero-valued fields.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WrapperLimit == 0 {
		opts.WrapperLimit = DefaultWrapperLimit
	}
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.WithCredentials {
		jar, err := cookiejar.New(nil)
		if err == nil {
			hc.Jar = jar
		}
	}
	return &Client{opts: opts, httpClient: hc}
}

// EstimatedBitrate returns the last measured fetch throughput in kbps,
// or 0 if nothing has been fetched yet.
func (c *Client) EstimatedBitrate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimatedKbps
}

// GetAndParse fetches the VAST document at url and parses it as a root
// document, following wrappers if enabled.
func (c *Client) GetAndParse(ctx context.Context, url string) (*Response, error) {
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch VAST %s: %w", url, err)
	}
	return c.Parse(ctx, data)
}

// Parse parses data as a root VAST document. Wrapper ads are resolved
// over the network up to the configured depth limit; an ad whose chain
// exceeds the limit or fails to fetch is dropped.
func (c *Client) Parse(ctx context.Context, data []byte) (*Response, error) {
	return c.parse(ctx, data, 0)
}

func (c *Client) parse(ctx context.Context, data []byte, depth int) (*Response, error) {
	var doc VAST
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal VAST: %w", err)
	}
	resp := Response{Version: doc.Version}
	for _, ad := range doc.Ads {
		switch {
		case ad.InLine != nil:
			resp.Ads = append(resp.Ads, flattenInLine(ad))
		case ad.Wrapper != nil:
			ads, err := c.resolveWrapper(ctx, ad, depth)
			if err != nil {
				slog.Warn("dropping wrapper ad", "id", ad.ID, "err", err)
				continue
			}
			resp.Ads = append(resp.Ads, ads...)
		}
	}
	return &resp, nil
}

// resolveWrapper fetches the wrapped document and merges the wrapper's
// tracking data into the resulting ads.
func (c *Client) resolveWrapper(ctx context.Context, ad Ad, depth int) ([]FlatAd, error) {
	if !c.opts.FollowWrappers {
		return nil, fmt.Errorf("wrapper following disabled")
	}
	if depth+1 > c.opts.WrapperLimit {
		return nil, fmt.Errorf("wrapper limit %d exceeded", c.opts.WrapperLimit)
	}
	w := ad.Wrapper
	uri := strings.TrimSpace(w.VASTAdTagURI)
	if uri == "" {
		return nil, fmt.Errorf("empty VASTAdTagURI")
	}
	data, err := c.fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	wrapped, err := c.parse(ctx, data, depth+1)
	if err != nil {
		return nil, err
	}
	for i := range wrapped.Ads {
		mergeWrapper(&wrapped.Ads[i], w)
	}
	return wrapped.Ads, nil
}

func flattenInLine(ad Ad) FlatAd {
	il := ad.InLine
	flat := FlatAd{
		ID:        ad.ID,
		Sequence:  ad.Sequence,
		System:    il.AdSystem.Name,
		Title:     il.AdTitle,
		Creatives: il.Creatives.Creative,
	}
	for _, e := range il.Error {
		flat.ErrorURLs = append(flat.ErrorURLs, strings.TrimSpace(e))
	}
	for _, imp := range il.Impression {
		flat.ImpressionURLs = append(flat.ImpressionURLs, strings.TrimSpace(imp.URL))
	}
	if il.Extensions != nil {
		flat.Extensions = il.Extensions.Extension
	}
	return flat
}

// mergeWrapper appends the wrapper's tracking URLs and extensions to a
// wrapped ad. Linear tracking and click tracking from wrapper creatives
// are merged into every linear creative of the ad.
func mergeWrapper(flat *FlatAd, w *Wrapper) {
	for _, e := range w.Error {
		flat.ErrorURLs = append(flat.ErrorURLs, strings.TrimSpace(e))
	}
	for _, imp := range w.Impression {
		flat.ImpressionURLs = append(flat.ImpressionURLs, strings.TrimSpace(imp.URL))
	}
	if w.Extensions != nil {
		flat.Extensions = append(flat.Extensions, w.Extensions.Extension...)
	}
	var tracking []Tracking
	var clicks []Click
	for _, wc := range w.Creatives.Creative {
		if wc.Linear == nil {
			continue
		}
		if wc.Linear.TrackingEvents != nil {
			tracking = append(tracking, wc.Linear.TrackingEvents.Tracking...)
		}
		if wc.Linear.VideoClicks != nil {
			clicks = append(clicks, wc.Linear.VideoClicks.ClickTracking...)
		}
	}
	if len(tracking) == 0 && len(clicks) == 0 {
		return
	}
	for i := range flat.Creatives {
		lin := flat.Creatives[i].Linear
		if lin == nil {
			continue
		}
		if lin.TrackingEvents == nil {
			lin.TrackingEvents = &TrackingEvents{}
		}
		lin.TrackingEvents.Tracking = append(lin.TrackingEvents.Tracking, tracking...)
		if len(clicks) > 0 {
			if lin.VideoClicks == nil {
				lin.VideoClicks = &VideoClicks{}
			}
			lin.VideoClicks.ClickTracking = append(lin.VideoClicks.ClickTracking, clicks...)
		}
	}
}

// fetch gets one document and updates the bandwidth estimate from the
// observed throughput.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if elapsed := time.Since(start); elapsed > 0 && len(data) > 0 {
		c.mu.Lock()
		c.estimatedKbps = int(float64(len(data)) * 8 / elapsed.Seconds() / 1000)
		c.mu.Unlock()
	}
	return data, nil
}

// ParseDuration converts a colon-separated duration like "00:00:30"
// to seconds. Components are summed as base-60 positional values, so
// "1:30" and "90" both give 90. Fractional seconds are not supported.
func ParseDuration(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("bad duration %q: too many components", s)
	}
	secs := 0
	mult := 1
	for i := len(parts) - 1; i >= 0; i-- {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("bad duration %q: %w", s, err)
		}
		secs += mult * v
		mult *= 60
	}
	return secs, nil
}
