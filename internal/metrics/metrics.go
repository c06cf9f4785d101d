// Package metrics exposes gateway, refresh and logout counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeResponse       = "response"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeSessionExpired = "session_expired"
	OutcomeTransportError = "transport_error"

	RefreshSuccess = "success"
	RefreshFailure = "failure"
)

// Recorder is what the gateway, the refresh coordinator and the session
// lifecycle report to.
type Recorder interface {
	RecordRequest(outcome string)
	RecordRetry()
	RecordRefresh(result string)
	RecordRefreshJoined()
	RecordLogout(reason string)
}

type Collector struct {
	requests      *prometheus.CounterVec
	retries       prometheus.Counter
	refreshes     *prometheus.CounterVec
	refreshJoined prometheus.Counter
	logouts       *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_gateway_requests_total",
			Help: "Dispatched domain requests by final outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "practice_gateway_retries_total",
			Help: "Requests retried after a successful refresh.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_refresh_cycles_total",
			Help: "Refresh network operations by result.",
		}, []string{"result"}),
		refreshJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "practice_refresh_joined_total",
			Help: "Refresh callers whose result came from a refresh shared with other callers.",
		}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_logouts_total",
			Help: "Local logouts by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.requests,
		c.retries,
		c.refreshes,
		c.refreshJoined,
		c.logouts,
	)

	return c
}

func (c *Collector) RecordRequest(outcome string) {
	c.requests.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

func (c *Collector) RecordRefresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRefreshJoined() {
	c.refreshJoined.Inc()
}

func (c *Collector) RecordLogout(reason string) {
	c.logouts.WithLabelValues(reason).Inc()
}

// Handler returns the scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are not wired.
type Nop struct{}

func (Nop) RecordRequest(string) {}
func (Nop) RecordRetry()         {}
func (Nop) RecordRefresh(string) {}
func (Nop) RecordRefreshJoined() {}
func (Nop) RecordLogout(string)  {}
