// Package metrics exposes Prometheus collectors for the API.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clipshare"

// Engagement event kinds.
const (
	EventLike        = "like"
	EventDislike     = "dislike"
	EventView        = "view"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventComment     = "comment"
	EventUpload      = "upload"
)

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	registry         *prometheus.Registry
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	engagementEvents *prometheus.CounterVec
}

// NewRecorder registers the request and engagement collectors, the Go runtime
// collectors and, when db is not nil, connection pool gauges.
func NewRecorder(db *sql.DB) *Recorder {
	registry := prometheus.NewRegistry()
	recorder := &Recorder{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "HTTP request duration in seconds, by route, method and status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		engagementEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engagement_events_total",
				Help:      "Engagement mutations accepted, by kind.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		recorder.requestDuration,
		recorder.requestsInFlight,
		recorder.engagementEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if db != nil {
		registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections currently in use.",
			}, func() float64 {
				return float64(db.Stats().InUse)
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections.",
			}, func() float64 {
				return float64(db.Stats().Idle)
			}),
		)
	}
	return recorder
}

// Middleware records request duration and the in-flight count.
// Requests that match no route are labelled "unmatched".
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		r.requestsInFlight.Inc()
		start := time.Now()

		c.Next()

		r.requestsInFlight.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.requestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// RecordEvent counts an accepted engagement mutation.
func (r *Recorder) RecordEvent(kind string) {
	if r == nil {
		return
	}
	r.engagementEvents.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
