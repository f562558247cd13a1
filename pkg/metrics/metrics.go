// Package metrics exposes prometheus collectors for the fetch pipeline.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "competesync"

// Metrics holds the collectors registered on its own registry
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	refreshes       prometheus.Counter
	rejections      prometheus.Counter
	challengeSolves *prometheus.CounterVec
	pages           prometheus.Counter
	fetches         *prometheus.CounterVec
	itemsStored     *prometheus.CounterVec
}

// New creates a Metrics instance with Go runtime collectors included
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Remote API requests by HTTP status (0 for transport failures)",
		}, []string{"status"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Remote API request latency",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_refreshes_total",
			Help:      "Times the challenge solver was invoked for fresh credentials",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Responses that rejected the presented credentials",
		}),
		challengeSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_solves_total",
			Help:      "Challenge solve attempts by outcome",
		}, []string{"outcome"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages successfully fetched and parsed",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed paginated fetches by termination reason",
		}, []string{"reason"}),
		itemsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_stored_total",
			Help:      "Records upserted into the local store",
		}, []string{"collection"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestLatency,
		m.refreshes,
		m.rejections,
		m.challengeSolves,
		m.pages,
		m.fetches,
		m.itemsStored,
	)
	return m
}

// ObserveRequest records one remote call
func (m *Metrics) ObserveRequest(status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.requestLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) CredentialRefresh() {
	if m == nil {
		return
	}
	m.refreshes.Inc()
}

func (m *Metrics) AuthRejection() {
	if m == nil {
		return
	}
	m.rejections.Inc()
}

// ChallengeSolved records whether a solve produced a usable clearance
func (m *Metrics) ChallengeSolved(ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.challengeSolves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pages.Inc()
}

// FetchFinished records the termination reason of a paginated fetch
func (m *Metrics) FetchFinished(reason string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(reason).Inc()
}

func (m *Metrics) ItemsStored(collection string, n int) {
	if m == nil {
		return
	}
	m.itemsStored.WithLabelValues(collection).Add(float64(n))
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
