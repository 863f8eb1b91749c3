// Package metrics counts connection attempts for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/merliot/station"
)

// Collector is a station.Observer that keeps Prometheus metrics
type Collector struct {
	connectRequests prometheus.Counter
	retries         prometheus.Counter
	outcomes        *prometheus.CounterVec
	lastRetries     prometheus.Gauge
}

// New registers the station metrics with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station",
			Name:      "connect_requests_total",
			Help:      "Connect requests issued to the network stack, first tries and retries.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station",
			Name:      "retries_total",
			Help:      "Connect requests issued after a disconnect.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station",
			Name:      "attempts_total",
			Help:      "Connection attempts by outcome.",
		}, []string{"outcome"}),
		lastRetries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "station",
			Name:      "last_attempt_retries",
			Help:      "Retries used by the last attempt to finish.",
		}),
	}
	reg.MustRegister(c.connectRequests, c.retries, c.outcomes, c.lastRetries)
	return c
}

func (c *Collector) ConnectRequested(attempt string, retry int) {
	c.connectRequests.Inc()
	if retry > 0 {
		c.retries.Inc()
	}
}

func (c *Collector) Resolved(attempt string, outcome station.Outcome, retries int) {
	c.outcomes.WithLabelValues(outcome.String()).Inc()
	c.lastRetries.Set(float64(retries))
}

var _ station.Observer = (*Collector)(nil)
