package csai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dash-Industry-Forum/csai/pkg/ads"
	"github.com/Dash-Industry-Forum/csai/pkg/events"
	"github.com/Dash-Industry-Forum/csai/pkg/player"
)

// kindRecorder collects emitted tracking notifications.
type kindRecorder struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (r *kindRecorder) record(kind events.Kind, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *kindRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// nullDispatcher drops beacons so tests stay off the network.
type nullDispatcher struct{}

func (nullDispatcher) Dispatch(url string) {}

func vastDoc(adID string) string {
	return fmt.Sprintf(`<VAST version="4.0">
  <Ad id=%q>
    <InLine>
      <AdTitle>Spot</AdTitle>
      <Impression>https://track.example/%s/imp</Impression>
      <Creatives>
        <Creative>
          <Linear>
            <Duration>00:00:20</Duration>
            <MediaFiles>
              <MediaFile delivery="progressive" type="video/mp4" bitrate="300">https://cdn.example/%s.mp4</MediaFile>
            </MediaFiles>
          </Linear>
        </Creative>
      </Creatives>
    </InLine>
  </Ad>
</VAST>`, adID, adID, adID)
}

// serveVMAP serves a VMAP with a preroll and a five-minute midroll,
// blocking the response until release is closed.
func serveVMAP(t *testing.T, release chan struct{}) *httptest.Server {
	t.Helper()
	doc := fmt.Sprintf(`<vmap:VMAP xmlns:vmap="http://www.iab.net/videosuite/vmap" version="1.0">
  <vmap:AdBreak timeOffset="start" breakType="linear">
    <vmap:AdSource><vmap:VASTAdData>%s</vmap:VASTAdData></vmap:AdSource>
    <vmap:TrackingEvents>
      <vmap:Tracking event="breakStart">https://track.example/bs0</vmap:Tracking>
      <vmap:Tracking event="breakEnd">https://track.example/be0</vmap:Tracking>
    </vmap:TrackingEvents>
  </vmap:AdBreak>
  <vmap:AdBreak timeOffset="00:05:00" breakType="linear">
    <vmap:AdSource><vmap:VASTAdData>%s</vmap:VASTAdData></vmap:AdSource>
  </vmap:AdBreak>
</vmap:VMAP>`, vastDoc("ad-pre"), vastDoc("ad-mid"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, opts Options) (*Manager, *kindRecorder) {
	t.Helper()
	if opts.BeaconDispatcher == nil {
		opts.BeaconDispatcher = nullDispatcher{}
	}
	m, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	rec := &kindRecorder{}
	m.On(events.Wildcard, rec.record)
	return m, rec
}

func waitForState(t *testing.T, m *Manager, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, 2*time.Second, 2*time.Millisecond)
}

func TestPrerollAndMidrollScheduling(t *testing.T) {
	release := make(chan struct{})
	srv := serveVMAP(t, release)

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        srv.URL,
		Autoplay:       true,
	})
	close(release)

	// preroll plays before content has advanced at all
	waitForState(t, m, "playing")
	require.Equal(t, 0.0, content.CurrentTime())
	require.True(t, adSurface.Visible())
	require.Equal(t, "https://cdn.example/ad-pre.mp4", adSurface.Source())
	require.Equal(t, 1, rec.count(events.BreakStart))
	require.Equal(t, 1, rec.count(events.Start))
	require.Equal(t, 1, rec.count(events.Impression))

	// quartiles in order while the ad advances
	adSurface.Advance(6) // 30%
	require.Equal(t, 1, rec.count(events.FirstQuartile))
	require.Equal(t, 0, rec.count(events.Midpoint))
	adSurface.Advance(5) // 55%
	require.Equal(t, 1, rec.count(events.Midpoint))
	adSurface.Advance(5) // 80%
	require.Equal(t, 1, rec.count(events.ThirdQuartile))

	adSurface.Advance(4) // end of ad
	require.Equal(t, 1, rec.count(events.Complete))
	require.Equal(t, 1, rec.count(events.BreakEnd))

	// content resumed and the ad surface is hidden again
	require.True(t, content.Playing())
	require.False(t, adSurface.Visible())

	// crossing the 300 s marker triggers the midroll exactly once
	pausesBefore := content.PauseCalls()
	content.Advance(301)
	require.Equal(t, 2, rec.count(events.BreakStart))
	require.Greater(t, content.PauseCalls(), pausesBefore)
	require.Equal(t, "https://cdn.example/ad-mid.mp4", adSurface.Source())

	adSurface.Advance(20)
	require.Equal(t, 2, rec.count(events.Complete))
	require.Equal(t, 2, rec.count(events.BreakEnd))
	require.True(t, content.Playing())

	// no marker left: advancing further does not retrigger anything
	content.Advance(50)
	require.Equal(t, 2, rec.count(events.BreakStart))
	require.Equal(t, 0, m.PendingBreaks())
}

func TestSeekGuard(t *testing.T) {
	release := make(chan struct{})
	srv := serveVMAP(t, release)

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, _ := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        srv.URL,
		Autoplay:       true,
	})
	close(release)
	waitForState(t, m, "playing")

	adSurface.Advance(2)
	require.Equal(t, 2.0, adSurface.CurrentTime())

	// a user seek far from the valid position is forced back
	adSurface.Seek(15)
	require.Equal(t, 2.0, adSurface.CurrentTime())

	// a tiny drift is left alone
	adSurface.Seek(2.005)
	require.Equal(t, 2.005, adSurface.CurrentTime())
}

func TestPauseResumeTracking(t *testing.T) {
	release := make(chan struct{})
	srv := serveVMAP(t, release)

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        srv.URL,
		Autoplay:       true,
	})
	close(release)
	waitForState(t, m, "playing")

	m.Pause()
	waitForState(t, m, "paused")
	require.Equal(t, 1, rec.count(events.Pause))

	m.Play()
	waitForState(t, m, "playing")
	require.Equal(t, 1, rec.count(events.Resume))
	// resume does not refire start
	require.Equal(t, 1, rec.count(events.Start))
}

func TestErrorTracking(t *testing.T) {
	release := make(chan struct{})
	srv := serveVMAP(t, release)

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        srv.URL,
		Autoplay:       true,
	})
	close(release)
	waitForState(t, m, "playing")

	adSurface.TriggerError()
	adSurface.TriggerError()
	require.Equal(t, 1, rec.count(events.Error))
}

func TestLiveGuardSkipsResolution(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, vastDoc("ad-live"))
	}))
	defer srv.Close()

	content := player.NewFakeSurface(600)
	adSurface := player.NewFakeSurface(20)

	m, _ := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		IsLive:         true,
		Sources: []ads.SourceItem{
			{TimeOffset: 0, URL: srv.URL},
			{TimeOffset: 300, URL: srv.URL},
		},
	})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, hits)
	require.Equal(t, 0, m.PendingBreaks())
	require.Equal(t, "idle", m.State())
}

func TestLiveSingleSourceAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, vastDoc("ad-live"))
	}))
	defer srv.Close()

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, _ := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		IsLive:         true,
		Autoplay:       true,
		Sources:        []ads.SourceItem{{TimeOffset: 0, URL: srv.URL}},
	})
	// the single preroll still plays
	waitForState(t, m, "playing")
}

func TestAdWithoutPlayableFileIsSkipped(t *testing.T) {
	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		Autoplay:       true,
	})

	brk := &ads.AdBreak{
		BreakType:  ads.Preroll,
		TimeOffset: 0,
		TrackingEvents: ads.BreakTracking{
			BreakStart: []string{}, BreakEnd: []string{},
		},
		Ads: []*ads.Ad{
			{ID: "broken", Creative: &ads.Creative{Type: "linear"}},
			{ID: "good", Creative: &ads.Creative{
				Type: "linear",
				MediaFiles: []ads.MediaFile{
					{FileURL: "https://cdn.example/good.mp4", MIMEType: "video/mp4"},
				},
			}},
		},
	}
	m.playAdBreak(brk)

	require.Equal(t, "https://cdn.example/good.mp4", adSurface.Source())
	require.Equal(t, 1, rec.count(events.Start))
}

func TestManualBreakInjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, vastDoc("ad-manual"))
	}))
	defer srv.Close()

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		Autoplay:       true,
	})

	require.NoError(t, m.FetchAdBreak(context.Background(), srv.URL))
	require.Equal(t, 1, m.PendingBreaks())

	m.TriggerAdBreak()
	require.Equal(t, "https://cdn.example/ad-manual.mp4", adSurface.Source())
	require.Equal(t, 1, rec.count(events.BreakStart))
	require.Equal(t, 0, m.PendingBreaks())

	// nothing queued: a second trigger is a no-op
	m.TriggerAdBreak()
	require.Equal(t, 1, rec.count(events.BreakStart))
}

func TestManualBreakSurvivesResolution(t *testing.T) {
	release := make(chan struct{})
	vmapSrv := serveVMAP(t, release)
	vastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, vastDoc("ad-manual"))
	}))
	defer vastSrv.Close()

	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, _ := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        vmapSrv.URL,
		Autoplay:       true,
	})

	// enqueue a manual break while VMAP resolution is still blocked
	require.NoError(t, m.FetchAdBreak(context.Background(), vastSrv.URL))
	require.Equal(t, 1, m.PendingBreaks())

	close(release)
	waitForState(t, m, "playing")

	// the preroll is playing; the manual break and the midroll remain
	require.Equal(t, 2, m.PendingBreaks())
	require.Equal(t, "https://cdn.example/ad-pre.mp4", adSurface.Source())
}

func TestVolumeMirroring(t *testing.T) {
	content := player.NewFakeSurface(600)
	adSurface := player.NewFakeSurface(20)

	newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
	})

	content.SetVolume(0.4)
	require.Equal(t, 0.4, adSurface.Volume())
	content.SetMuted(true)
	require.True(t, adSurface.Muted())
}

func TestDisabledPlaybackManagement(t *testing.T) {
	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	content.Play()
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface:            content,
		AdSurface:                 adSurface,
		Autoplay:                  true,
		DisablePlaybackManagement: true,
	})

	require.Equal(t, 0, content.PauseCalls())

	brk := &ads.AdBreak{
		BreakType:      ads.Midroll,
		TimeOffset:     60,
		TrackingEvents: ads.BreakTracking{BreakStart: []string{}, BreakEnd: []string{}},
		Ads: []*ads.Ad{{ID: "a", Creative: &ads.Creative{
			Type:       "linear",
			MediaFiles: []ads.MediaFile{{FileURL: "https://cdn.example/a.mp4", MIMEType: "video/mp4"}},
		}}},
	}
	m.playAdBreak(brk)

	// ad surface and tracking are driven, content is left alone
	require.Equal(t, 0, content.PauseCalls())
	require.True(t, adSurface.Visible())
	require.Equal(t, 1, rec.count(events.BreakStart))

	adSurface.Advance(20)
	require.Equal(t, 1, rec.count(events.BreakEnd))
	// the content stayed under caller control the whole time
	require.True(t, content.Playing())
	require.Equal(t, 0, content.PauseCalls())
}

func TestDestroy(t *testing.T) {
	content := player.NewFakeSurface(600)
	content.SetSource("https://cdn.example/content.mp4")
	adSurface := player.NewFakeSurface(20)

	m, rec := newTestManager(t, Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		Autoplay:       true,
	})

	brk := &ads.AdBreak{
		BreakType:      ads.Preroll,
		TimeOffset:     0,
		TrackingEvents: ads.BreakTracking{BreakStart: []string{}, BreakEnd: []string{}},
		Ads: []*ads.Ad{{ID: "a", Creative: &ads.Creative{
			Type:       "linear",
			MediaFiles: []ads.MediaFile{{FileURL: "https://cdn.example/a.mp4", MIMEType: "video/mp4"}},
		}}},
	}
	m.playAdBreak(brk)
	m.Destroy()

	require.Equal(t, 0, m.PendingBreaks())

	// surface events no longer reach the manager or subscribers
	before := rec.count(events.Complete)
	adSurface.Advance(20)
	require.Equal(t, before, rec.count(events.Complete))

	// destroying twice is fine
	m.Destroy()
}

func TestValidateOptions(t *testing.T) {
	content := player.NewFakeSurface(600)
	adSurface := player.NewFakeSurface(20)

	_, err := New(Options{})
	require.ErrorIs(t, err, ErrNoContentSurface)

	_, err = New(Options{ContentSurface: content})
	require.ErrorIs(t, err, ErrNoAdSurface)

	// both source modes: the flat list wins
	opts, err := validateOptions(Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		VMAPURL:        "https://ads.example/vmap.xml",
		Sources:        []ads.SourceItem{{TimeOffset: 0, URL: "https://ads.example/vast.xml"}},
	})
	require.NoError(t, err)
	require.Empty(t, opts.VMAPURL)

	// both surfaces: the explicit ad surface wins
	opts, err = validateOptions(Options{
		ContentSurface: content,
		AdSurface:      adSurface,
		NewAdSurface:   func() player.Surface { return player.NewFakeSurface(0) },
	})
	require.NoError(t, err)
	require.Nil(t, opts.NewAdSurface)
}

func TestOwnedAdSurface(t *testing.T) {
	content := player.NewFakeSurface(600)
	var created *player.FakeSurface

	m, _ := newTestManager(t, Options{
		ContentSurface: content,
		NewAdSurface: func() player.Surface {
			created = player.NewFakeSurface(20)
			return created
		},
	})
	require.NotNil(t, created)

	created.SetSource("https://cdn.example/a.mp4")
	created.SetVisible(true)
	m.Destroy()

	// the manager created the surface, so teardown unloads it
	require.Equal(t, "", created.Source())
	require.False(t, created.Visible())
}
