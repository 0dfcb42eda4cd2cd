// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package csai

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/Dash-Industry-Forum/csai/pkg/ads"
	"github.com/Dash-Industry-Forum/csai/pkg/events"
	"github.com/Dash-Industry-Forum/csai/pkg/player"
	"github.com/Dash-Industry-Forum/csai/pkg/tracker"
)

// seekTolerance is the largest position jump the ad surface may make
// without the seek guard forcing it back.
const seekTolerance = 0.01

type state string

const (
	stateIdle    state = "idle"
	statePlaying state = "playing"
	statePaused  state = "paused"
	stateEnded   state = "ended"
)

// Manager schedules ad breaks on a timeline and switches playback
// between the content surface and the ad surface. All exported methods
// are safe for concurrent use; surface callbacks re-enter the Manager
// synchronously.
type Manager struct {
	mu   sync.Mutex
	opts Options

	content       player.Surface
	adSurface     player.Surface
	ownsAdSurface bool
	filter        *player.EventFilter

	resolver *ads.Resolver
	tracker  *tracker.Tracker

	state        state
	breaks       []*ads.AdBreak
	markers      []int
	currentBreak *ads.AdBreak
	queue        []*ads.Ad
	currentAd    *ads.Ad

	adStarted bool
	adEnded   bool
	validTime float64
	watching  bool
	destroyed bool

	contentListenerID int
	adListenerID      int
}

// New validates opts, wires the surfaces, and starts resolving the
// configured ad sources in the background. Playback of resolved breaks
// begins as soon as resolution completes.
func New(opts Options) (*Manager, error) {
	opts, err := validateOptions(opts)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		opts:     opts,
		state:    stateIdle,
		content:  opts.ContentSurface,
		resolver: ads.NewResolver(),
		tracker:  tracker.New(events.NewEmitter(), opts.BeaconDispatcher),
	}
	if opts.AdSurface != nil {
		m.adSurface = opts.AdSurface
	} else {
		m.adSurface = opts.NewAdSurface()
		m.ownsAdSurface = true
	}
	m.filter = player.NewEventFilter(m.adSurface)

	if !opts.DisablePlaybackManagement {
		m.content.Pause()
	}
	m.adSurface.SetMuted(m.content.Muted())
	m.adSurface.SetVolume(m.content.Volume())
	m.contentListenerID = m.content.AddListener(m.onContentEvent)

	go m.fetchAds(context.Background())
	return m, nil
}

// On subscribes fn to a tracking-event kind. events.Wildcard receives
// every kind. The returned id can be passed to Off.
func (m *Manager) On(kind events.Kind, fn events.Handler) int {
	return m.tracker.Emitter().On(kind, fn)
}

// Once subscribes fn for a single delivery of kind.
func (m *Manager) Once(kind events.Kind, fn events.Handler) int {
	return m.tracker.Emitter().Once(kind, fn)
}

// Off removes a subscription made with On or Once.
func (m *Manager) Off(kind events.Kind, id int) {
	m.tracker.Emitter().Off(kind, id)
}

// State returns the current playback state of the ad surface.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.state)
}

// PendingBreaks returns the number of breaks waiting to play.
func (m *Manager) PendingBreaks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.breaks)
}

// Play starts or resumes ad playback. Called before resolution has
// produced any breaks it starts the content instead.
func (m *Manager) Play() {
	m.mu.Lock()
	st := m.state
	hasCurrent := m.currentAd != nil && !m.adEnded
	if st == stateIdle && !hasCurrent {
		m.state = statePlaying
	}
	m.mu.Unlock()

	switch {
	case st == stateIdle && hasCurrent:
		// an ad is loaded but was waiting for the caller
		m.adSurface.Play()
	case st == stateIdle:
		m.playNextVideo()
	case st == statePaused:
		m.adSurface.Play()
	}
}

// Pause pauses the ad surface when an ad is playing.
func (m *Manager) Pause() {
	m.mu.Lock()
	playing := m.state == statePlaying
	m.mu.Unlock()
	if playing {
		m.adSurface.Pause()
	}
}

// FetchAdBreak resolves one VAST URL and appends the resulting break
// to the queue, for use with TriggerAdBreak.
func (m *Manager) FetchAdBreak(ctx context.Context, vastURL string) error {
	brk, err := m.resolver.ResolveSingle(ctx, vastURL)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if !m.destroyed {
		m.breaks = append(m.breaks, brk)
	}
	m.mu.Unlock()
	return nil
}

// TriggerAdBreak plays the next queued break immediately, independent
// of the timeline position.
func (m *Manager) TriggerAdBreak() {
	m.mu.Lock()
	if len(m.breaks) == 0 {
		m.mu.Unlock()
		return
	}
	brk := m.breaks[0]
	m.breaks = m.breaks[1:]
	if len(m.markers) > 0 && m.markers[0] == brk.TimeOffset {
		m.markers = m.markers[1:]
	}
	m.mu.Unlock()
	m.playAdBreak(brk)
}

// Destroy tears the Manager down: queues, current references, tracked
// event memory, and listeners are cleared. An ad surface created by the
// Manager is hidden and unloaded; a caller-supplied one is left alone.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.breaks = nil
	m.markers = nil
	m.queue = nil
	m.currentAd = nil
	m.currentBreak = nil
	m.watching = false
	contentID := m.contentListenerID
	m.contentListenerID = 0
	adID := m.adListenerID
	m.adListenerID = 0
	owns := m.ownsAdSurface
	m.mu.Unlock()

	if contentID != 0 {
		m.content.RemoveListener(contentID)
	}
	if adID != 0 {
		m.adSurface.RemoveListener(adID)
	}
	m.filter.Destroy()
	m.tracker.Reset()
	m.tracker.Emitter().Clear()
	if owns {
		m.adSurface.SetSource("")
		m.adSurface.SetVisible(false)
	}
}

// fetchAds resolves the configured sources, then sorts the breaks by
// ascending time offset and starts scheduling. Runs on its own
// goroutine; a Destroy during resolution discards the result.
func (m *Manager) fetchAds(ctx context.Context) {
	opts := m.opts
	if opts.IsLive && len(opts.Sources) > 1 {
		m.debugLog("live stream with multiple sources, skipping ad resolution")
		return
	}
	var breaks []*ads.AdBreak
	var err error
	switch {
	case opts.IsLive && opts.VMAPURL != "":
		// live streams take no container manifest
	case opts.VMAPURL != "":
		breaks, err = m.resolver.ResolveVMAP(ctx, opts.VMAPURL)
	case len(opts.Sources) > 0:
		breaks, err = m.resolver.ResolveSources(ctx, opts.Sources)
	}
	if err != nil {
		slog.Warn("ad resolution failed", "err", err)
		breaks = nil
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	// breaks enqueued manually while resolution was in flight are kept
	m.breaks = append(m.breaks, breaks...)
	sort.SliceStable(m.breaks, func(i, j int) bool {
		return m.breaks[i].TimeOffset < m.breaks[j].TimeOffset
	})
	m.markers = make([]int, len(m.breaks))
	for i, b := range m.breaks {
		m.markers[i] = b.TimeOffset
	}
	m.mu.Unlock()
	m.debugLog("ad breaks resolved", "breaks", len(breaks))
	m.start()
}

// start plays a preroll right away or arms the timeline watcher.
func (m *Manager) start() {
	m.mu.Lock()
	if len(m.markers) > 0 && m.markers[0] == 0 {
		m.markers = m.markers[1:]
		brk := m.breaks[0]
		m.breaks = m.breaks[1:]
		m.mu.Unlock()
		m.playAdBreak(brk)
		return
	}
	m.watching = len(m.markers) > 0
	m.mu.Unlock()
}

func (m *Manager) playAdBreak(brk *ads.AdBreak) {
	m.debugLog("play ad break", "offset", brk.TimeOffset, "ads", len(brk.Ads))
	if !m.opts.DisablePlaybackManagement {
		m.content.Pause()
	}
	m.mu.Lock()
	m.currentBreak = brk
	m.queue = append(m.queue, brk.Ads...)
	m.mu.Unlock()
	m.tracker.BreakEvent(brk, events.BreakStart)
	m.playNextVideo()
}

// playNextVideo moves on to the next ad of the current break, or back
// to content when the break is exhausted.
func (m *Manager) playNextVideo() {
	m.mu.Lock()
	adID := m.adListenerID
	m.adListenerID = 0
	var ad *ads.Ad
	if len(m.queue) > 0 {
		ad = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if adID != 0 {
		m.adSurface.RemoveListener(adID)
	}
	m.filter.Clear()

	if ad != nil {
		m.playAd(ad)
	} else {
		m.playContent()
	}
}

func (m *Manager) playAd(ad *ads.Ad) {
	src := ""
	if ad.Creative != nil && len(ad.Creative.MediaFiles) > 0 {
		src = ad.Creative.MediaFiles[0].FileURL
	}
	if src == "" {
		m.debugLog("skipping ad without playable file", "id", ad.ID)
		m.playNextVideo()
		return
	}
	m.debugLog("play ad", "id", ad.ID, "src", src)

	m.mu.Lock()
	m.currentAd = ad
	m.adStarted = false
	m.adEnded = false
	autoplay := m.state != stateIdle || m.opts.Autoplay
	m.mu.Unlock()

	m.adSurface.SetVisible(true)
	m.adSurface.SetSource(src)

	m.filter.On(player.FilterTimeUpdate, m.onAdTimeUpdate)
	m.filter.On(player.FilterPause, m.onAdPause)
	m.filter.On(player.FilterResume, m.onAdResume)
	m.filter.On(player.FilterError, m.onAdError)
	// the seek guard and the start/end transitions listen on the raw
	// surface: they must not be maskable by the filter
	id := m.adSurface.AddListener(m.onAdRawEvent)
	m.mu.Lock()
	m.adListenerID = id
	m.mu.Unlock()

	if autoplay {
		m.adSurface.Play()
	}
}

func (m *Manager) playContent() {
	m.debugLog("play content")
	m.adSurface.SetVisible(false)
	m.adSurface.SetSource("")

	m.mu.Lock()
	brk := m.currentBreak
	m.currentBreak = nil
	m.mu.Unlock()

	if brk != nil {
		m.tracker.BreakEvent(brk, events.BreakEnd)
	}
	if !m.opts.DisablePlaybackManagement {
		m.content.Play()
	}

	m.mu.Lock()
	m.watching = len(m.markers) > 0
	m.mu.Unlock()
}

func (m *Manager) onContentEvent(ev player.Event) {
	switch ev {
	case player.EventVolumeChange:
		// the ad surface mirrors the content surface's settings
		m.adSurface.SetMuted(m.content.Muted())
		m.adSurface.SetVolume(m.content.Volume())
	case player.EventTimeUpdate:
		m.onContentTimeUpdate()
	}
}

func (m *Manager) onContentTimeUpdate() {
	m.mu.Lock()
	if !m.watching || len(m.markers) == 0 {
		m.mu.Unlock()
		return
	}
	if m.content.CurrentTime() <= float64(m.markers[0]) {
		m.mu.Unlock()
		return
	}
	m.watching = false
	m.markers = m.markers[1:]
	var brk *ads.AdBreak
	if len(m.breaks) > 0 {
		brk = m.breaks[0]
		m.breaks = m.breaks[1:]
	}
	m.mu.Unlock()
	if brk != nil {
		m.playAdBreak(brk)
	}
}

func (m *Manager) onAdRawEvent(ev player.Event) {
	switch ev {
	case player.EventPlaying:
		m.mu.Lock()
		if m.adStarted {
			m.mu.Unlock()
			return
		}
		m.adStarted = true
		m.state = statePlaying
		ad := m.currentAd
		m.mu.Unlock()
		m.tracker.AdEvent(ad, events.Start)
		m.tracker.AdEvent(ad, events.Impression)
	case player.EventEnded:
		m.mu.Lock()
		if m.adEnded {
			m.mu.Unlock()
			return
		}
		m.adEnded = true
		m.state = stateEnded
		m.validTime = 0
		ad := m.currentAd
		m.mu.Unlock()
		m.tracker.AdEvent(ad, events.Complete)
		m.playNextVideo()
	case player.EventSeeking:
		// ads are not seekable: force the position back when it jumps
		// away from the last known valid time
		m.mu.Lock()
		valid := m.validTime
		m.mu.Unlock()
		if math.Abs(m.adSurface.CurrentTime()-valid) > seekTolerance {
			m.adSurface.SetCurrentTime(valid)
		}
	}
}

func (m *Manager) onAdTimeUpdate() {
	if !m.adSurface.Seeking() {
		t := m.adSurface.CurrentTime()
		m.mu.Lock()
		m.validTime = t
		m.mu.Unlock()
	}
	m.monitorProgress()
}

// monitorProgress fires the quartile events. Thresholds are checked on
// every tick with a plain greater-than comparison; the tracker's dedup
// makes repeated firing a no-op.
func (m *Manager) monitorProgress() {
	m.mu.Lock()
	ad := m.currentAd
	m.mu.Unlock()
	if ad == nil {
		return
	}
	dur := m.adSurface.Duration()
	if dur <= 0 {
		return
	}
	remaining := dur - m.adSurface.CurrentTime()
	percent := int(math.Round(100 - 100*remaining/dur))
	if percent > 25 {
		m.tracker.AdEvent(ad, events.FirstQuartile)
	}
	if percent > 50 {
		m.tracker.AdEvent(ad, events.Midpoint)
	}
	if percent > 75 {
		m.tracker.AdEvent(ad, events.ThirdQuartile)
	}
}

func (m *Manager) onAdPause() {
	m.mu.Lock()
	m.state = statePaused
	ad := m.currentAd
	m.mu.Unlock()
	m.tracker.AdEvent(ad, events.Pause)
}

func (m *Manager) onAdResume() {
	m.mu.Lock()
	m.state = statePlaying
	ad := m.currentAd
	m.mu.Unlock()
	m.tracker.AdEvent(ad, events.Resume)
}

func (m *Manager) onAdError() {
	m.mu.Lock()
	ad := m.currentAd
	m.mu.Unlock()
	m.tracker.AdEvent(ad, events.Error)
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.opts.Debug {
		slog.Debug(msg, args...)
	}
}
