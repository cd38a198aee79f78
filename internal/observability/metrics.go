package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaicctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mosaicctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	tilesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mosaicctl",
			Subsystem: "tiles",
			Name:      "known",
			Help:      "Tiles currently known to the control plane.",
		},
	)
	tilesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mosaicctl",
			Subsystem: "tiles",
			Name:      "active",
			Help:      "Tiles currently registered as active.",
		},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mosaicctl",
			Subsystem: "queues",
			Name:      "depth",
			Help:      "Pending actions per tile queue.",
		},
		[]string{"tile"},
	)
	actionsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaicctl",
			Subsystem: "queues",
			Name:      "actions_enqueued_total",
			Help:      "Actions accepted into tile queues.",
		},
		[]string{"tile", "kind"},
	)
	callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaicctl",
			Subsystem: "tiles",
			Name:      "callbacks_total",
			Help:      "Completion callbacks received from tiles.",
		},
		[]string{"tile", "status"},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaicctl",
			Subsystem: "tiles",
			Name:      "launches_total",
			Help:      "Tile process launches by outcome.",
		},
		[]string{"tile", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			tilesKnown, tilesActive, queueDepth,
			actionsEnqueued, callbacks, launches,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func SetTilesKnown(count int) {
	RegisterMetrics()
	tilesKnown.Set(float64(count))
}

func SetTilesActive(count int) {
	RegisterMetrics()
	tilesActive.Set(float64(count))
}

func SetQueueDepth(tile string, depth int) {
	RegisterMetrics()
	queueDepth.WithLabelValues(tile).Set(float64(depth))
}

func DropQueueDepth(tile string) {
	RegisterMetrics()
	queueDepth.DeleteLabelValues(tile)
}

func RecordActionEnqueued(tile, kind string) {
	RegisterMetrics()
	actionsEnqueued.WithLabelValues(tile, kind).Inc()
}

func RecordCallback(tile string, status int) {
	RegisterMetrics()
	callbacks.WithLabelValues(tile, strconv.Itoa(status)).Inc()
}

func RecordLaunch(tile, outcome string) {
	RegisterMetrics()
	launches.WithLabelValues(tile, outcome).Inc()
}
