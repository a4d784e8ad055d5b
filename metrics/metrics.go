// Package metrics instruments connection and stream lifecycle events with
// Prometheus collectors, in the style of gaspardpetit/nfrx's
// sdk/base/metrics package: package-level CounterVec/GaugeVec/HistogramVec
// variables plus a Register function the caller invokes against whatever
// prometheus.Registerer it owns. Metrics are entirely optional; nothing in
// the protocol core depends on Register having been called.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsocket_frames_sent_total", Help: "Frames written to the transport, by frame type."},
		[]string{"frame_type"},
	)
	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsocket_frames_received_total", Help: "Frames read from the transport, by frame type."},
		[]string{"frame_type"},
	)
	ActiveStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "rsocket_active_streams", Help: "Streams currently open, by interaction pattern."},
		[]string{"pattern"},
	)
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rsocket_active_connections", Help: "Connections currently in the ACTIVE state."},
	)
	LeaseRejections = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rsocket_lease_rejections_total", Help: "Requests rejected locally, before sending, due to lease exhaustion."},
	)
	KeepaliveMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rsocket_keepalive_misses_total", Help: "Connections closed after a keepalive echo was not observed within max_lifetime_ms."},
	)
	StreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsocket_stream_errors_total", Help: "Stream-level ERROR frames sent or received, plus received CANCEL frames (code CANCELED), by error code and direction."},
		[]string{"code", "direction"},
	)
)

// Register registers every collector in this package with reg. Calling it
// twice with the same Registerer is a programming error, as with any
// Prometheus registration; callers that need idempotence should use a
// prometheus.Registry they control and call Register once at startup.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		FramesSent, FramesReceived, ActiveStreams, ActiveConnections,
		LeaseRejections, KeepaliveMisses, StreamErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
