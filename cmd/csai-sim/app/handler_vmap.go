// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"log/slog"
	"net/http"
)

// sampleVMAPTemplate is a small but complete VMAP document with two ad
// breaks. All tracking URIs point back at this server's /beacon
// endpoint so that a full playback session can be observed end to end.
const sampleVMAPTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<vmap:VMAP xmlns:vmap="http://www.iab.net/videosuite/vmap" version="1.0">
  <vmap:AdBreak timeOffset="start" breakType="linear" breakId="preroll-1">
    <vmap:AdSource id="preroll-src" allowMultipleAds="false" followRedirects="true">
      <vmap:VASTAdData>
        <VAST version="4.0">
          <Ad id="sim-pre-1">
            <InLine>
              <AdSystem>csai-sim</AdSystem>
              <AdTitle>Preroll</AdTitle>
              <Impression><![CDATA[{{.Base}}/beacon?kind=impression&ad=sim-pre-1]]></Impression>
              <Error><![CDATA[{{.Base}}/beacon?kind=error&ad=sim-pre-1]]></Error>
              <Creatives>
                <Creative id="cr-pre-1">
                  <Linear>
                    <Duration>00:00:10</Duration>
                    <TrackingEvents>
                      <Tracking event="start"><![CDATA[{{.Base}}/beacon?kind=start&ad=sim-pre-1]]></Tracking>
                      <Tracking event="firstQuartile"><![CDATA[{{.Base}}/beacon?kind=firstQuartile&ad=sim-pre-1]]></Tracking>
                      <Tracking event="midpoint"><![CDATA[{{.Base}}/beacon?kind=midpoint&ad=sim-pre-1]]></Tracking>
                      <Tracking event="thirdQuartile"><![CDATA[{{.Base}}/beacon?kind=thirdQuartile&ad=sim-pre-1]]></Tracking>
                      <Tracking event="complete"><![CDATA[{{.Base}}/beacon?kind=complete&ad=sim-pre-1]]></Tracking>
                    </TrackingEvents>
                    <MediaFiles>
                      <MediaFile id="pre-low" delivery="progressive" type="video/mp4" bitrate="300" width="640" height="360"><![CDATA[{{.Base}}/media/sim-pre-1-low.mp4]]></MediaFile>
                      <MediaFile id="pre-high" delivery="progressive" type="video/mp4" bitrate="2000" width="1280" height="720"><![CDATA[{{.Base}}/media/sim-pre-1-high.mp4]]></MediaFile>
                    </MediaFiles>
                  </Linear>
                </Creative>
              </Creatives>
              <Extensions>
                <Extension type="AdServer">
                  <AdInfo customaid="sim-pre-1" variant="BUMPER"/>
                </Extension>
              </Extensions>
            </InLine>
          </Ad>
        </VAST>
      </vmap:VASTAdData>
    </vmap:AdSource>
    <vmap:TrackingEvents>
      <vmap:Tracking event="breakStart"><![CDATA[{{.Base}}/beacon?kind=breakStart&break=preroll-1]]></vmap:Tracking>
      <vmap:Tracking event="breakEnd"><![CDATA[{{.Base}}/beacon?kind=breakEnd&break=preroll-1]]></vmap:Tracking>
    </vmap:TrackingEvents>
  </vmap:AdBreak>
  <vmap:AdBreak timeOffset="00:01:00" breakType="linear" breakId="midroll-1">
    <vmap:AdSource id="midroll-src" allowMultipleAds="false" followRedirects="true">
      <vmap:VASTAdData>
        <VAST version="4.0">
          <Ad id="sim-mid-1">
            <InLine>
              <AdSystem>csai-sim</AdSystem>
              <AdTitle>Midroll</AdTitle>
              <Impression><![CDATA[{{.Base}}/beacon?kind=impression&ad=sim-mid-1]]></Impression>
              <Error><![CDATA[{{.Base}}/beacon?kind=error&ad=sim-mid-1]]></Error>
              <Creatives>
                <Creative id="cr-mid-1">
                  <Linear>
                    <Duration>00:00:15</Duration>
                    <TrackingEvents>
                      <Tracking event="start"><![CDATA[{{.Base}}/beacon?kind=start&ad=sim-mid-1]]></Tracking>
                      <Tracking event="firstQuartile"><![CDATA[{{.Base}}/beacon?kind=firstQuartile&ad=sim-mid-1]]></Tracking>
                      <Tracking event="midpoint"><![CDATA[{{.Base}}/beacon?kind=midpoint&ad=sim-mid-1]]></Tracking>
                      <Tracking event="thirdQuartile"><![CDATA[{{.Base}}/beacon?kind=thirdQuartile&ad=sim-mid-1]]></Tracking>
                      <Tracking event="complete"><![CDATA[{{.Base}}/beacon?kind=complete&ad=sim-mid-1]]></Tracking>
                    </TrackingEvents>
                    <MediaFiles>
                      <MediaFile id="mid-low" delivery="progressive" type="video/mp4" bitrate="400" width="640" height="360"><![CDATA[{{.Base}}/media/sim-mid-1-low.mp4]]></MediaFile>
                    </MediaFiles>
                  </Linear>
                </Creative>
              </Creatives>
            </InLine>
          </Ad>
        </VAST>
      </vmap:VASTAdData>
    </vmap:AdSource>
    <vmap:TrackingEvents>
      <vmap:Tracking event="breakStart"><![CDATA[{{.Base}}/beacon?kind=breakStart&break=midroll-1]]></vmap:Tracking>
      <vmap:Tracking event="breakEnd"><![CDATA[{{.Base}}/beacon?kind=breakEnd&break=midroll-1]]></vmap:Tracking>
    </vmap:TrackingEvents>
  </vmap:AdBreak>
</vmap:VMAP>
`

type vmapTemplateData struct {
	Base string
}

// vmapHandlerFunc serves the sample VMAP with all URLs rewritten to
// point back at the requesting host.
func (s *Server) vmapHandlerFunc(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	data := vmapTemplateData{Base: scheme + "://" + r.Host}
	w.Header().Set("Content-Type", "application/xml")
	if err := s.textTemplates.ExecuteTemplate(w, "vmap", data); err != nil {
		slog.Error("execute VMAP template", "err", err)
	}
}

// mediaHandlerFunc stands in for a CDN. The simulator's surfaces never
// fetch media, but players probing the URL get a well-formed answer.
func (s *Server) mediaHandlerFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
}
