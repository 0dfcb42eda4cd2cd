// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultBuckets = []float64{5, 10, 20, 50, 100, 200, 500, 1000}
	prometheusMW   prometheusMiddleware
	beaconReqs     *prometheus.CounterVec
)

const (
	manifestReqsName    = "manifest_requests_total"
	manifestLatencyName = "manifest_request_duration_milliseconds"
	beaconReqsName      = "beacon_requests_total"
	service             = "csai-sim"
)

// prometheusMiddleware provides a handler that exposes prometheus metrics for manifest requests
type prometheusMiddleware struct {
	manifestReqs    *prometheus.CounterVec
	manifestLatency *prometheus.HistogramVec
}

func init() {
	prometheusMW.manifestReqs = newCounter(manifestReqsName,
		"Number of VMAP/VAST manifest requests processed, partitioned by status code.",
		service, []string{"code"})
	prometheusMW.manifestLatency = newHistogram(manifestLatencyName,
		"Manifest response latency.", service, defaultBuckets)
	beaconReqs = newCounter(beaconReqsName,
		"Number of tracking beacons received, partitioned by event kind.",
		service, []string{"kind"})
}

// NewPrometheusMiddleware returns a new prometheus Middleware handler.
func NewPrometheusMiddleware() func(next http.Handler) http.Handler {
	return prometheusMW.handler
}

func (mw prometheusMiddleware) handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if !strings.HasSuffix(path, ".xml") {
			return
		}
		status := strconv.Itoa(ww.Status())
		latencyMS := float64(time.Since(start).Nanoseconds()) * 1e-6
		mw.manifestReqs.WithLabelValues(status).Inc()
		mw.manifestLatency.WithLabelValues(status).Observe(latencyMS)
	}
	return http.HandlerFunc(fn)
}

func newCounter(counterName, help, serviceName string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        counterName,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		labels,
	)
	prometheus.MustRegister(cv)
	return cv
}

func newHistogram(histogramName, help, serviceName string, buckets []float64) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        histogramName,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": serviceName},
		Buckets:     buckets,
	},
		[]string{"code"},
	)
	prometheus.MustRegister(h)
	return h
}
