// Package metrics exposes Prometheus collectors for the HTTP API and the
// cutting planner.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

// Outcome labels for planner runs.
const (
	OutcomeComplete    = "complete"
	OutcomeUnplaceable = "unplaceable"
	OutcomeRejected    = "rejected"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PlanRunsTotal    *prometheus.CounterVec
	PlanDuration     prometheus.Histogram
	PlanUnitsUsed    prometheus.Histogram
	PlanWasteTotal   prometheus.Counter
	UnplaceableTotal prometheus.Counter
}

// New creates and registers all collectors under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.PlanRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_runs_total",
			Help:      "Total number of planner runs by outcome",
		},
		[]string{"outcome"},
	)
	m.PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Planner run duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
	m.PlanUnitsUsed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_units_used",
			Help:      "Stock units consumed per plan",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	m.PlanWasteTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_waste_length_total",
			Help:      "Sum of offcut length over all plans",
		},
	)
	m.UnplaceableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unplaceable_details_total",
			Help:      "Details that could not be placed on any stock unit",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PlanRunsTotal,
		m.PlanDuration,
		m.PlanUnitsUsed,
		m.PlanWasteTotal,
		m.UnplaceableTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePlan records a planner run. Runs that fail before planning count as
// rejected and leave the plan histograms untouched.
func (m *Metrics) ObservePlan(plan cutting.CuttingPlan, elapsed time.Duration, err error) {
	var unplaceable *cutting.UnplaceableDetailError
	switch {
	case err == nil:
		m.PlanRunsTotal.WithLabelValues(OutcomeComplete).Inc()
	case errors.As(err, &unplaceable):
		m.PlanRunsTotal.WithLabelValues(OutcomeUnplaceable).Inc()
		m.UnplaceableTotal.Add(float64(len(unplaceable.Details)))
	default:
		m.PlanRunsTotal.WithLabelValues(OutcomeRejected).Inc()
		return
	}

	m.PlanDuration.Observe(elapsed.Seconds())
	m.PlanUnitsUsed.Observe(float64(plan.TotalUnitsUsed))
	m.PlanWasteTotal.Add(plan.TotalWaste)
}

// Middleware records request counts, latency and in-flight requests. route
// maps a request to a low-cardinality label such as its mux pattern.
func (m *Metrics) Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		label := route(r)
		if label == "" {
			label = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
