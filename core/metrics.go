package core

// In-process Prometheus collectors. Nothing in this package starts an HTTP
// server or registers a /metrics handler — exposing them is left to
// whatever embeds this module, keeping this client's own scope to the sync
// engine (an RPC/metrics surface is an explicit non-goal).

import "github.com/prometheus/client_golang/prometheus"

var (
	MetricPeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yasbit",
		Name:      "peers_connected",
		Help:      "Number of peer sessions currently established.",
	})

	MetricBlocksValidated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yasbit",
		Name:      "blocks_validated_total",
		Help:      "Total number of blocks that passed validation and were stored.",
	})

	MetricBlocksRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yasbit",
		Name:      "blocks_rejected_total",
		Help:      "Total number of blocks that failed validation.",
	})

	MetricDownloadQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yasbit",
		Name:      "download_queue_depth",
		Help:      "Number of block hashes currently queued for download.",
	})

	MetricPeerReplacements = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yasbit",
		Name:      "peer_replacements_total",
		Help:      "Total number of peer replacements triggered by a block delivery timeout.",
	})
)

// Registry is the collector registry this module's metrics live in. Callers
// that want to expose them (e.g. behind promhttp.Handler) register it with
// their own HTTP mux; this package never does so itself.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		MetricPeersConnected,
		MetricBlocksValidated,
		MetricBlocksRejected,
		MetricDownloadQueueDepth,
		MetricPeerReplacements,
	)
}
