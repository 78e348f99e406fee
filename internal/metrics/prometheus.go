// Package metrics exposes voice server activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server collectors. It is registered on its own registry
// so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	SessionDuration prometheus.Histogram
	FatalErrors     prometheus.Counter

	// Frame metrics
	InboundFrames  prometheus.Counter
	InboundBytes   prometheus.Counter
	OutboundFrames *prometheus.CounterVec
	OutboundBytes  *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jarvis_voice_active_sessions",
			Help: "Current number of open voice sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_voice_sessions_total",
			Help: "Total number of voice sessions accepted",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jarvis_voice_session_duration_seconds",
			Help:    "How long voice sessions stay open",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		FatalErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_voice_pipeline_fatal_errors_total",
			Help: "Total number of sessions ended by a pipeline failure",
		}),

		InboundFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_voice_inbound_frames_total",
			Help: "Total number of binary audio frames received",
		}),
		InboundBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_voice_inbound_bytes_total",
			Help: "Total bytes of audio received",
		}),
		OutboundFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_voice_outbound_frames_total",
			Help: "Total number of frames sent, by frame type",
		}, []string{"type"}),
		OutboundBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_voice_outbound_bytes_total",
			Help: "Total bytes sent, by frame type",
		}, []string{"type"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveSession records how long a finished session stayed open.
func (m *Metrics) ObserveSession(d time.Duration) {
	m.SessionDuration.Observe(d.Seconds())
}

// The methods below let Metrics observe websocket sessions.

func (m *Metrics) ConnectionOpened() {
	m.ActiveSessions.Inc()
	m.SessionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.ActiveSessions.Dec()
}

func (m *Metrics) FrameReceived(bytes int) {
	m.InboundFrames.Inc()
	m.InboundBytes.Add(float64(bytes))
}

func (m *Metrics) FrameSent(binary bool, bytes int) {
	frameType := "text"
	if binary {
		frameType = "binary"
	}
	m.OutboundFrames.WithLabelValues(frameType).Inc()
	m.OutboundBytes.WithLabelValues(frameType).Add(float64(bytes))
}

func (m *Metrics) PipelineFailed() {
	m.FatalErrors.Inc()
}
