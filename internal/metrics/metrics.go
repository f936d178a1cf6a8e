// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the gateway exports.
type Metrics struct {
	FramesReceived     *prometheus.CounterVec
	FramesProcessed    *prometheus.CounterVec
	AuthFailures       prometheus.Counter
	MalformedEnvelopes *prometheus.CounterVec
	InferenceDuration  *prometheus.HistogramVec
	ReassemblyMapSize  prometheus.Gauge
	SessionMapSize     prometheus.Gauge
	CheckoutTotal      *prometheus.CounterVec
	InferencePoolSize  prometheus.Gauge
}

// New creates and registers every collector. Call once per process.
func New() *Metrics {
	return &Metrics{
		FramesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_frames_received_total",
				Help: "Total number of frame envelopes received, by transport",
			},
			[]string{"transport"},
		),
		FramesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_frames_processed_total",
				Help: "Total number of frames dispatched to inference, by outcome",
			},
			[]string{"outcome"}, // success, inference_error, degraded
		),
		AuthFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_auth_failures_total",
				Help: "Total number of frame envelopes rejected at authentication",
			},
		),
		MalformedEnvelopes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_malformed_envelopes_total",
				Help: "Total number of envelopes rejected at decode, by transport",
			},
			[]string{"transport"},
		),
		InferenceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_inference_duration_seconds",
				Help:    "Round-trip duration of inference backend calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ReassemblyMapSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_reassembly_map_size",
				Help: "Number of in-flight partial multi-chunk messages",
			},
		),
		SessionMapSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_session_map_size",
				Help: "Number of tracked session-to-peer-address entries",
			},
		),
		CheckoutTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_checkout_total",
				Help: "Total number of transaction checkouts, by outcome",
			},
			[]string{"outcome"}, // committed, duplicate, error
		),
		InferencePoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_inference_pool_size",
				Help: "Number of live inference backend connections",
			},
		),
	}
}
