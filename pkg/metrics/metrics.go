package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	Signups      prometheus.Counter
	Sightings    *prometheus.CounterVec
	Friendships  *prometheus.CounterVec
	FeedRequests *prometheus.CounterVec
}

// New registers every collector on a fresh registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireflies_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fireflies_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fireflies_signups_total",
			Help: "Accounts created.",
		}),
		Sightings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireflies_sighting_mutations_total",
			Help: "Sighting writes by operation.",
		}, []string{"op"}),
		Friendships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireflies_friendship_mutations_total",
			Help: "Friendship writes by operation.",
		}, []string{"op"}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireflies_feed_requests_total",
			Help: "Observation feed lookups by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.requests,
		m.duration,
		m.Signups,
		m.Sightings,
		m.Friendships,
		m.FeedRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument records request counts and latency keyed by the chi route
// pattern, so /sightings/1 and /sightings/2 share a series.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
