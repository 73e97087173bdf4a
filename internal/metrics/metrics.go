// Package metrics holds the Prometheus collectors shared across the
// record and receiver binaries (inspect exposes no metrics). All
// registration happens through Register.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChunksWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkeeper_chunks_written_total",
			Help: "Chunks appended to a show database, by show and outcome",
		},
		[]string{"show", "status"},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamkeeper_session_state",
			Help: "Session Controller state (1 = currently in this state)",
		},
		[]string{"show", "state"},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkeeper_stream_reconnects_total",
			Help: "Stream source reconnect attempts, by show",
		},
		[]string{"show"},
	)

	EncodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamkeeper_encode_duration_seconds",
			Help:    "Time spent pushing PCM through the encoder per chunk flush",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamkeeper_sync_lag_chunks",
			Help: "Chunks on the remote sender not yet pulled by this replica",
		},
		[]string{"show"},
	)
)

// Register wires every collector into the default Prometheus registry.
// Calling it more than once would panic (MustRegister), so record and
// receiver each call it exactly once in main.
func Register() {
	prometheus.MustRegister(ChunksWritten, SessionState, StreamReconnects, EncodeDuration, SyncLag)
}

// Handler returns the promhttp handler to mount on the metrics port.
func Handler() http.Handler {
	return promhttp.Handler()
}
