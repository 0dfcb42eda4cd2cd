package vast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const inlineDoc = `<?xml version="1.0" encoding="UTF-8"?>
<VAST version="4.0">
  <Ad id="ad-1" sequence="1">
    <InLine>
      <AdSystem>TestAdServer</AdSystem>
      <AdTitle>Spot One</AdTitle>
      <Error>
        https://track.example/error
      </Error>
      <Impression>https://track.example/impression</Impression>
      <Creatives>
        <Creative id="cr-1">
          <Linear>
            <Duration>00:00:30</Duration>
            <TrackingEvents>
              <Tracking event="start">https://track.example/start</Tracking>
              <Tracking event="complete">https://track.example/complete</Tracking>
            </TrackingEvents>
            <VideoClicks>
              <ClickThrough>https://click.example/landing</ClickThrough>
              <ClickTracking>https://track.example/click</ClickTracking>
            </VideoClicks>
            <MediaFiles>
              <MediaFile delivery="progressive" type="video/mp4" bitrate="1200" width="1280" height="720">
                https://cdn.example/spot1_1200.mp4
              </MediaFile>
            </MediaFiles>
          </Linear>
        </Creative>
      </Creatives>
      <Extensions>
        <Extension type="AdServer">
          <AdInfo customaid="CUSTOM-1" variant="BUMPER"/>
        </Extension>
      </Extensions>
    </InLine>
  </Ad>
</VAST>`

func TestParseInLine(t *testing.T) {
	c := NewClient(Options{})
	resp, err := c.Parse(context.Background(), []byte(inlineDoc))
	require.NoError(t, err)
	require.Equal(t, "4.0", resp.Version)
	require.Len(t, resp.Ads, 1)

	ad := resp.Ads[0]
	require.Equal(t, "ad-1", ad.ID)
	require.Equal(t, 1, ad.Sequence)
	require.Equal(t, "TestAdServer", ad.System)
	require.Equal(t, "Spot One", ad.Title)
	require.Equal(t, []string{"https://track.example/error"}, ad.ErrorURLs)
	require.Equal(t, []string{"https://track.example/impression"}, ad.ImpressionURLs)
	require.Len(t, ad.Creatives, 1)
	require.NotNil(t, ad.Creatives[0].Linear)
	require.Len(t, ad.Extensions, 1)
	require.Equal(t, "AdServer", ad.Extensions[0].Type)
}

func TestWrapperChasing(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/inline", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, inlineDoc)
	})
	mux.HandleFunc("/wrapper", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<VAST version="4.0">
  <Ad id="wrap-1">
    <Wrapper>
      <AdSystem>Wrapping</AdSystem>
      <VASTAdTagURI>%s/inline</VASTAdTagURI>
      <Impression>https://track.example/wrap-impression</Impression>
      <Creatives>
        <Creative>
          <Linear>
            <TrackingEvents>
              <Tracking event="midpoint">https://track.example/wrap-midpoint</Tracking>
            </TrackingEvents>
          </Linear>
        </Creative>
      </Creatives>
    </Wrapper>
  </Ad>
</VAST>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Options{FollowWrappers: true})
	resp, err := c.GetAndParse(context.Background(), srv.URL+"/wrapper")
	require.NoError(t, err)
	require.Len(t, resp.Ads, 1)

	ad := resp.Ads[0]
	require.Equal(t, "ad-1", ad.ID)
	require.Contains(t, ad.ImpressionURLs, "https://track.example/impression")
	require.Contains(t, ad.ImpressionURLs, "https://track.example/wrap-impression")
	tr := ad.Creatives[0].Linear.TrackingEvents.Tracking
	var names []string
	for _, te := range tr {
		names = append(names, te.Event)
	}
	require.Contains(t, names, "midpoint")
	require.Greater(t, c.EstimatedBitrate(), 0)
}

func TestWrapperLimit(t *testing.T) {
	// Every response wraps itself, so any limit must eventually trip.
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<VAST version="4.0">
  <Ad id="loop">
    <Wrapper>
      <VASTAdTagURI>%s/loop</VASTAdTagURI>
    </Wrapper>
  </Ad>
</VAST>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Options{FollowWrappers: true, WrapperLimit: 3})
	resp, err := c.GetAndParse(context.Background(), srv.URL+"/loop")
	require.NoError(t, err)
	require.Empty(t, resp.Ads)
}

func TestWrappersDisabled(t *testing.T) {
	doc := `<VAST version="4.0">
  <Ad id="w"><Wrapper><VASTAdTagURI>https://ads.example/next</VASTAdTagURI></Wrapper></Ad>
</VAST>`
	c := NewClient(Options{FollowWrappers: false})
	resp, err := c.Parse(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Empty(t, resp.Ads)
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		desc    string
		val     string
		want    int
		wantErr bool
	}{
		{desc: "full form", val: "01:02:03", want: 3723},
		{desc: "minutes and seconds", val: "1:30", want: 90},
		{desc: "seconds only", val: "90", want: 90},
		{desc: "zero", val: "0", want: 0},
		{desc: "not a number", val: "banana", wantErr: true},
		{desc: "fractional seconds", val: "00:00:30.5", wantErr: true},
		{desc: "too many components", val: "1:2:3:4", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			got, err := ParseDuration(c.val)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}
