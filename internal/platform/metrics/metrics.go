package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// TravelLookups counts travel-time resolutions by source
	// (cache, provider, unreachable).
	TravelLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "travel_lookups_total", Help: "Travel-time lookups by source."},
		[]string{"source"},
	)
	// GoogleCalls counts outbound Google Maps API calls by endpoint and status.
	GoogleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "google_api_calls_total", Help: "Google Maps API calls by endpoint and status."},
		[]string{"endpoint", "status"},
	)
	// GeotabCalls counts outbound Geotab API calls by method and status.
	GeotabCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geotab_api_calls_total", Help: "Geotab API calls by method and status."},
		[]string{"method", "status"},
	)
	// HTTPRequests counts served requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(TravelLookups)
		Registry.MustRegister(GoogleCalls)
		Registry.MustRegister(GeotabCalls)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
