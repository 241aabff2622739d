// Package metrics exposes Prometheus counters for the service's own
// operational telemetry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the service-level Prometheus metrics.
type Collector struct {
	ValidationsTotal *prometheus.CounterVec
	IngestsTotal     *prometheus.CounterVec
	AlertsTotal      *prometheus.CounterVec
	UsageRecorded    prometheus.Counter
	CommandsEnqueued prometheus.Counter
}

// NewCollector registers and returns the service metrics on the given
// registerer. Pass prometheus.DefaultRegisterer in production.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "license_validations_total",
			Help:      "License validation attempts by outcome.",
		}, []string{"outcome"}),
		IngestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "telemetry_ingests_total",
			Help:      "Telemetry reports ingested by metric type.",
		}, []string{"metric_type"}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "agent_alerts_total",
			Help:      "Agent alerts raised by severity.",
		}, []string{"severity"}),
		UsageRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "usage_records_total",
			Help:      "Metered usage events recorded.",
		}),
		CommandsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "agent_commands_total",
			Help:      "Commands enqueued for agents.",
		}),
	}
}

// ObserveValidation counts one validation attempt. Outcome is "valid" or the
// failure reason.
func (c *Collector) ObserveValidation(outcome string) {
	c.ValidationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveIngest counts one telemetry report and its raised alerts.
func (c *Collector) ObserveIngest(metricType string, severities []string) {
	c.IngestsTotal.WithLabelValues(metricType).Inc()
	for _, s := range severities {
		c.AlertsTotal.WithLabelValues(s).Inc()
	}
}
