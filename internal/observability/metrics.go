package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotspot_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the hotspot service.
type Metrics struct {
	// Store round trips.
	StoreRequests *prometheus.CounterVec   // labels: op={list,list_by_location,list_by_bounds,create,update,delete,upload_photo}, outcome={success,error}
	StoreDuration *prometheus.HistogramVec // labels: op

	// Realtime feed and local reconciliation.
	FeedEvents      *prometheus.CounterVec // labels: source={postgres,kafka}, type={INSERT,UPDATE,DELETE}
	FeedErrors      *prometheus.CounterVec // labels: source
	Reconciliations *prometheus.CounterVec // labels: op={create,update,delete}, outcome={confirmed,rolled_back,reloaded}
	SessionHotspots prometheus.Gauge
	SessionLoaded   prometheus.Gauge

	// Geocoding.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty,fallback}
	GeocodeCache       *prometheus.CounterVec // labels: layer={memory,redis}, result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Browser connections.
	WebSocketClients prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StoreRequests,
		m.StoreDuration,
		m.FeedEvents,
		m.FeedErrors,
		m.Reconciliations,
		m.SessionHotspots,
		m.SessionLoaded,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.WebSocketClients,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StoreRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_requests_total",
			Help:      "Hotspot store round trips by operation and outcome.",
		}, []string{"op", "outcome"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_request_duration_seconds",
			Help:      "Hotspot store round-trip duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Realtime change events received by source and type.",
		}, []string{"source", "type"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Realtime feed read or decode failures by source.",
		}, []string{"source"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Optimistic mutation outcomes by operation.",
		}, []string{"op", "outcome"}),
		SessionHotspots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_hotspots",
			Help:      "Hotspots currently held in local state.",
		}),
		SessionLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_loaded",
			Help:      "1 once the initial hotspot list has loaded, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "OpenCage API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when OpenCage geocoding is enabled, 0 otherwise.",
		}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected realtime browser clients.",
		}),
	}
}
